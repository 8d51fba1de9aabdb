package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ReservedList is a concurrency-safe, hot-reloadable set of reserved
// nicknames (case-insensitive). It is the sanctioned concurrent-reader
// exception for the chat handler goroutines: IsReserved only ever reads
// an atomically-swapped snapshot, never a lock-protected structure.
type ReservedList struct {
	set     atomic.Value // map[string]struct{}
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewReservedList creates a ReservedList seeded with names.
func NewReservedList(names []string) *ReservedList {
	rl := &ReservedList{logger: slog.Default()}
	rl.store(names)
	return rl
}

func (rl *ReservedList) store(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	rl.set.Store(set)
}

// IsReserved reports whether nick (case-insensitive) is on the reserved
// list.
func (rl *ReservedList) IsReserved(nick string) bool {
	set, _ := rl.set.Load().(map[string]struct{})
	if set == nil {
		return false
	}
	_, ok := set[strings.ToLower(strings.TrimSpace(nick))]
	return ok
}

// WatchFile reloads the reserved-nickname list from path whenever the
// owning config file changes on disk, using fsnotify on the file's
// parent directory (editors commonly replace a file rather than write
// it in place, which does not generate an event on the file itself).
func (rl *ReservedList) WatchFile(path string, logger *slog.Logger) error {
	if logger != nil {
		rl.logger = logger
	}
	rl.path = path

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	rl.watcher = w

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go rl.watchLoop()
	return nil
}

func (rl *ReservedList) watchLoop() {
	for {
		select {
		case ev, ok := <-rl.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(rl.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rl.reload()
		case err, ok := <-rl.watcher.Errors:
			if !ok {
				return
			}
			rl.logger.Warn("reserved nickname watch error", "error", err)
		}
	}
}

func (rl *ReservedList) reload() {
	cfg, err := Load(rl.path)
	if err != nil {
		rl.logger.Warn("failed to reload config, keeping previous reserved nicknames", "path", rl.path, "error", err)
		return
	}
	rl.store(cfg.ReservedNicknames)
	rl.logger.Info("reloaded reserved nickname list", "count", len(cfg.ReservedNicknames))
}

// Close stops the hot-reload watch, if one was started.
func (rl *ReservedList) Close() error {
	if rl.watcher == nil {
		return nil
	}
	return rl.watcher.Close()
}
