package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

const (
	DefaultCooldown = 2 * time.Second
	// DefaultPattern covers the Notes database and its WAL and SHM files
	DefaultPattern = "NoteStore.sqlite*"
)

var (
	ErrSourceNotFound = goerr.New("watched file not found")
	ErrInvalidPattern = goerr.New("invalid watch pattern")
)

// ChangeFunc is called for each accepted change with the modified file path
type ChangeFunc func(ctx context.Context, path string)

// Watcher observes the directory of the Notes database and reports writes
// to matching files. Reports are rate limited: after one is delivered,
// further writes are dropped until the cooldown has passed.
type Watcher struct {
	path     string
	pattern  string
	cooldown time.Duration
	onChange ChangeFunc
	now      func() time.Time

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	last    time.Time
}

var _ interfaces.Watcher = &Watcher{}

// Option is a functional option for Watcher configuration
type Option func(*Watcher)

// WithCooldown sets the minimum interval between two reports
func WithCooldown(d time.Duration) Option {
	return func(w *Watcher) {
		w.cooldown = d
	}
}

// WithPattern sets the doublestar pattern matched against file base names
func WithPattern(pattern string) Option {
	return func(w *Watcher) {
		w.pattern = pattern
	}
}

// WithClock replaces the time source used for the cooldown
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// New creates a watcher for the file at path
func New(path string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		pattern:  DefaultPattern,
		cooldown: DefaultCooldown,
		onChange: onChange,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	if !doublestar.ValidatePattern(w.pattern) {
		return nil, goerr.Wrap(ErrInvalidPattern, "failed to create watcher", goerr.V("pattern", w.pattern))
	}
	return w, nil
}

// Path returns the watched file
func (w *Watcher) Path() string {
	return w.path
}

// Running reports whether events are being observed
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins watching. Starting a running watcher is a no-op. The watch
// outlives ctx cancellation and ends only with Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		logging.From(ctx).Warn("Watcher already running", slog.String("path", w.path))
		return nil
	}

	if _, err := os.Stat(w.path); err != nil {
		return goerr.Wrap(ErrSourceNotFound, "failed to start watcher",
			goerr.V("path", w.path),
			goerr.V("cause", err.Error()),
		)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create fsnotify watcher")
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", dir))
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(loopCtx, fsw, w.done)

	logging.From(ctx).Info("Started Notes database watcher",
		slog.String("dir", dir),
		slog.String("pattern", w.pattern),
		slog.Duration("cooldown", w.cooldown),
	)
	return nil
}

// Stop ends watching and waits for the event loop to exit. Stopping a
// stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.running = false
	w.fsw = nil
	w.mu.Unlock()

	cancel()
	err := fsw.Close()
	<-done

	if err != nil {
		return goerr.Wrap(err, "failed to close fsnotify watcher")
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	logger := logging.From(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.accept(ev) {
				continue
			}
			logger.Info("Notes database modified", slog.String("file", ev.Name))
			w.notify(ctx, ev.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			_ = errutil.Handle(ctx, err, "watcher error")
		}
	}
}

// accept applies the event filter and the leading-edge cooldown
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) {
		return false
	}
	if !doublestar.MatchUnvalidated(w.pattern, filepath.Base(ev.Name)) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if !w.last.IsZero() && now.Sub(w.last) <= w.cooldown {
		return false
	}
	w.last = now
	return true
}

func (w *Watcher) notify(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			_ = errutil.Handle(ctx, goerr.New("panic in change handler", goerr.V("panic", r)), "watcher callback panicked")
		}
	}()
	if w.onChange != nil {
		w.onChange(ctx, path)
	}
}
