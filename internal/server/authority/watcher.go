package authority

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	DefaultDebounce = 250 * time.Millisecond
	eventBufferSize = 256
)

// Watcher rebuilds the authority tree when anything under the root changes.
// Bursts of events are collapsed into a single rebuild.
type Watcher struct {
	rebuilder *Rebuilder
	debounce  time.Duration
	events    chan notify.EventInfo
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewWatcher(rebuilder *Rebuilder, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		rebuilder: rebuilder,
		debounce:  debounce,
		done:      make(chan struct{}),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	root := w.rebuilder.Root()
	slog.Info("tree watcher start", "root", root)

	w.events = make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(filepath.Join(root, "..."), w.events, notify.All); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

func (w *Watcher) Stop() {
	if w.events != nil {
		notify.Stop(w.events)
	}
	close(w.done)
	w.wg.Wait()
	slog.Info("tree watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.done:
			return

		case event := <-w.events:
			slog.Debug("tree watcher", "event", event.Event(), "path", event.Path())
			timer.Reset(w.debounce)

		case <-timer.C:
			if _, _, _, err := w.rebuilder.Rebuild(ctx); err != nil {
				slog.Error("tree watcher rebuild", "error", err)
			}
		}
	}
}
