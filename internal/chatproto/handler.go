package chatproto

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/logiclrd/cotcpsrv/internal/coro"
	"github.com/logiclrd/cotcpsrv/internal/hooks"
	"github.com/logiclrd/cotcpsrv/internal/logger"
	"github.com/logiclrd/cotcpsrv/internal/ratelimit"
	"github.com/logiclrd/cotcpsrv/internal/relay"
)

const (
	nicknamePrompt  = "Nickname: "
	maxNicknameLen  = 20
	maxLineLen      = 1000
	broadcastSuffix = "\r\n"
)

// Stdout is where broadcast lines are echoed, mirroring the original's
// printf("%s", message) call inside broadcast(). A field (not a direct
// fmt.Print call) so tests can capture it.
type Writer interface {
	Write(p []byte) (int, error)
}

// Protocol wires the chat wire protocol to the fan-out and hook
// infrastructure shared by every connection.
type Protocol struct {
	Fanout     *relay.FanoutManager
	Hooks      *hooks.HookManager
	IsReserved func(nick string) bool
	NewLimiter func() *ratelimit.Limiter
	Stdout     Writer
	Logger     *slog.Logger
}

// NewProtocol builds a Protocol with the given collaborators, initialising
// IsReserved to "never reserved" and NewLimiter to "unlimited".
func NewProtocol(fanout *relay.FanoutManager, hookMgr *hooks.HookManager, stdout Writer) *Protocol {
	return &Protocol{
		Fanout:     fanout,
		Hooks:      hookMgr,
		IsReserved: func(string) bool { return false },
		NewLimiter: ratelimit.Unlimited,
		Stdout:     stdout,
		Logger:     logger.Logger().With("component", "chatproto"),
	}
}

// Handle is the per-connection entry point, grounded on tcp_client_loop:
// prompt for a nickname, reject reserved ones silently, then read and
// broadcast lines until the connection closes.
func (p *Protocol) Handle(t *coro.Task) error {
	if _, err := t.Send([]byte(nicknamePrompt)); err != nil {
		return nil
	}

	nick, err := readLine(t, maxNicknameLen)
	if err != nil {
		return nil
	}

	if p.IsReserved != nil && p.IsReserved(strings.ToLower(nick)) {
		// Reserved nickname: identical teardown path as any other
		// disconnect, no additional bytes written.
		return nil
	}

	t.Nick = nick
	p.fireEvent(hooks.EventNicknameSet, t)

	dest := p.Fanout.Register(t)
	defer p.Fanout.Unregister(t.ConnID())
	defer dest.Close()

	prefix := "<" + nick + "> "
	limiter := p.NewLimiter()

	for {
		delay := limiter.Reserve()
		waitForLineBudget(t, delay)

		line, err := readLine(t, maxLineLen-len(prefix)-len(broadcastSuffix))
		if err != nil {
			break
		}

		message := prefix + line + broadcastSuffix

		if p.Stdout != nil {
			fmt.Fprint(p.Stdout, message)
		}

		p.Fanout.Broadcast([]byte(message), t.ConnID())
		p.fireEvent(hooks.EventMessageBroadcast, t)
	}

	return nil
}

func (p *Protocol) fireEvent(et hooks.EventType, t *coro.Task) {
	if p.Hooks == nil {
		return
	}
	p.Hooks.TriggerEvent(context.Background(), *hooks.NewEvent(et).WithConnID(t.ConnID()).WithNick(t.Nick))
}
