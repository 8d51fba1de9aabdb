package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logiclrd/cotcpsrv/internal/bufpool"
	"github.com/logiclrd/cotcpsrv/internal/chatproto"
	"github.com/logiclrd/cotcpsrv/internal/config"
	"github.com/logiclrd/cotcpsrv/internal/controller"
	"github.com/logiclrd/cotcpsrv/internal/coro"
	chatrelayerrors "github.com/logiclrd/cotcpsrv/internal/errors"
	"github.com/logiclrd/cotcpsrv/internal/hooks"
	"github.com/logiclrd/cotcpsrv/internal/logger"
	"github.com/logiclrd/cotcpsrv/internal/ratelimit"
	"github.com/logiclrd/cotcpsrv/internal/rawsock"
	"github.com/logiclrd/cotcpsrv/internal/relay"
	"github.com/logiclrd/cotcpsrv/internal/stats"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	relayCfg := config.Default()
	if cfg.configPath != "" {
		relayCfg, err = config.Load(cfg.configPath)
		if err != nil {
			log.Error("failed to load config", "path", cfg.configPath, "error", err)
			os.Exit(1)
		}
	}

	reserved := config.NewReservedList(relayCfg.ReservedNicknames)
	if cfg.configPath != "" {
		if err := reserved.WatchFile(cfg.configPath, log); err != nil {
			log.Warn("failed to watch config for reserved-nickname hot-reload", "error", err)
		}
	}

	hookMgr := hooks.NewHookManager(hooks.DefaultHookConfig(), log)
	registerConfiguredHooks(hookMgr, relayCfg, log)

	fanout := relay.NewFanoutManager(log)

	proto := chatproto.NewProtocol(fanout, hookMgr, os.Stdout)
	proto.IsReserved = reserved.IsReserved
	proto.NewLimiter = func() *ratelimit.Limiter {
		if relayCfg.RateLimit.LinesPerSecond <= 0 {
			return ratelimit.Unlimited()
		}
		return ratelimit.New(relayCfg.RateLimit.LinesPerSecond, relayCfg.RateLimit.Burst)
	}

	listener, err := rawsock.Listen(cfg.listenAddr)
	if err != nil {
		log.Error("failed to bind listener", "addr", cfg.listenAddr, "error", err)
		os.Exit(1)
	}

	runtime := coro.NewRuntime(bufpool.New())
	ctl := controller.New(listener, runtime, hookMgr, proto.Handle)

	reporter, err := stats.NewReporter(relayCfg.Reporter.Schedule, ctl.ConnectionCount, fanout, os.Stdout, log)
	if err != nil {
		log.Error("invalid reporter schedule", "error", err)
		os.Exit(1)
	}
	reporter.Start()
	defer reporter.Stop()

	log.Info("server started", "addr", cfg.listenAddr, "version", version)

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ctl.Run(stop)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		close(stop)
	case err := <-done:
		if err != nil && chatrelayerrors.IsFatal(err) {
			log.Error("controller exited with fatal error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}

func registerConfiguredHooks(hookMgr *hooks.HookManager, cfg *config.Config, log *slog.Logger) {
	for _, def := range cfg.Hooks {
		eventType := hooks.EventType(def.Event)

		switch def.Type {
		case "shell":
			if err := hookMgr.RegisterHook(eventType, hooks.NewShellHook(def.Event+"-shell", def.Command, 30*time.Second)); err != nil {
				log.Warn("failed to register shell hook", "event", def.Event, "error", err)
			}
		case "webhook":
			if err := hookMgr.RegisterHook(eventType, hooks.NewWebhookHook(def.Event+"-webhook", def.URL, 30*time.Second)); err != nil {
				log.Warn("failed to register webhook hook", "event", def.Event, "error", err)
			}
		default:
			log.Warn("unknown hook type in config, skipping", "event", def.Event, "type", def.Type)
		}
	}
}
