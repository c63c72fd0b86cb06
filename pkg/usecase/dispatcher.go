package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"github.com/secmon-lab/notelens/pkg/service/bus"
	"github.com/secmon-lab/notelens/pkg/utils/async"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

// Dispatcher is the single consumer of the message bus. Every storage
// access happens on its goroutine, so the storage gateway needs no locking.
type Dispatcher struct {
	bus         *bus.Bus
	storage     interfaces.StorageGateway
	extractor   interfaces.Extractor
	watcher     interfaces.Watcher
	broadcaster interfaces.Broadcaster
	reconciler  *Reconciler
	tracker     *SetupTracker
	pool        *async.Pool
}

var _ model.PayloadHandler = &Dispatcher{}

// DispatcherOption is a functional option for Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherWatcher sets the watcher controlled by SystemControl
func WithDispatcherWatcher(w interfaces.Watcher) DispatcherOption {
	return func(d *Dispatcher) {
		d.watcher = w
	}
}

// WithDispatcherBroadcaster sets where priority events are delivered
func WithDispatcherBroadcaster(b interfaces.Broadcaster) DispatcherOption {
	return func(d *Dispatcher) {
		d.broadcaster = b
	}
}

// NewDispatcher wires the dispatch loop and the components it drives
func NewDispatcher(b *bus.Bus, storage interfaces.StorageGateway, extractor interfaces.Extractor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		bus:       b,
		storage:   storage,
		extractor: extractor,
		// extraction runs must never overlap
		pool: async.NewPool(1),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.reconciler = NewReconciler(storage)
	d.tracker = NewSetupTracker(b, storage, d.reconciler, d.extract,
		WithBroadcaster(d.broadcaster),
		WithWatcher(d.watcher),
		WithYield(d.drainPriority),
	)
	return d
}

// Tracker returns the setup tracker driven by this dispatcher
func (d *Dispatcher) Tracker() *SetupTracker {
	return d.tracker
}

// Run consumes messages until ctx is cancelled or the bus is closed. A
// failing or panicking handler is logged and does not end the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger := logging.From(ctx)
	logger.Info("Dispatcher started")
	defer func() {
		d.pool.Close()
		logger.Info("Dispatcher stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := d.bus.Next(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return goerr.Wrap(err, "failed to get next message")
		}

		d.dispatch(ctx, msg)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *model.Message) {
	kind := msg.Payload.Kind()
	ctx = logging.With(ctx, logging.From(ctx).With(
		slog.String("message_id", string(msg.ID)),
		slog.String("kind", kind.String()),
	))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := goerr.New("panic in message handler", goerr.V("panic", r), goerr.V("kind", kind))
			_ = errutil.Handle(ctx, err, "message handler panicked")
			msg.Respond(nil, err)
		}
	}()

	value, err := msg.Payload.Accept(ctx, d)
	if err != nil {
		_ = errutil.Handle(ctx, err, "message handler failed")
	}
	if msg.NeedsResponse() {
		msg.Respond(value, err)
	}

	if msg.Payload.Priority() != types.PriorityHigh {
		logging.From(ctx).Debug("Message handled", slog.Duration("elapsed", time.Since(started)))
	}
}

// drainPriority handles every queued priority message without blocking.
// While setup is running it also settles the queued main lane messages
// that setup supersedes.
func (d *Dispatcher) drainPriority(ctx context.Context) {
	for {
		msg, ok := d.bus.NextPriority()
		if !ok {
			break
		}
		d.dispatch(ctx, msg)
	}

	if d.tracker.Running() {
		d.settleDuringSetup(ctx)
	}
}

// settleDuringSetup rejects queued SetupStart requests and drops queued
// change syncs; the running setup already covers the source.
func (d *Dispatcher) settleDuringSetup(ctx context.Context) {
	for _, msg := range d.bus.TakeMain(types.MessageKindSetupStart, types.MessageKindSourceChanged) {
		logger := logging.From(ctx).With(slog.String("message_id", string(msg.ID)))

		switch p := msg.Payload.(type) {
		case *model.SetupStart:
			logger.Info("Setup is running, rejecting setup request")
			msg.Respond(nil, goerr.Wrap(ErrSetupInProgress, "setup rejected"))
		case *model.SourceChanged:
			logger.Info("Setup is running, skipping change sync", slog.String("path", p.Path))
		}
	}
}

// extract runs the extractor on the worker pool and keeps delivering
// priority messages until it finishes
func (d *Dispatcher) extract(ctx context.Context, progress interfaces.ProgressFunc) (*model.DocumentTree, error) {
	var tree *model.DocumentTree
	done, err := d.pool.Submit(ctx, func(ctx context.Context) error {
		var err error
		tree, err = d.extractor.Extract(ctx, d.extractor.SourcePath(), progress)
		return err
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to schedule extraction")
	}

	for {
		select {
		case err := <-done:
			d.drainPriority(ctx)
			if err != nil {
				return nil, err
			}
			return tree, nil
		case <-d.bus.Signal():
			d.drainPriority(ctx)
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "extraction interrupted")
		}
	}
}

// HandleSearchRequest runs a similarity search
func (d *Dispatcher) HandleSearchRequest(ctx context.Context, p *model.SearchRequest) ([]*model.SearchResult, error) {
	results, err := d.storage.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search notes", goerr.V("limit", p.Limit))
	}
	return results, nil
}

// HandleSourceChanged extracts and reconciles after the Notes database changed
func (d *Dispatcher) HandleSourceChanged(ctx context.Context, p *model.SourceChanged) error {
	logging.From(ctx).Info("Syncing notes after source change", slog.String("path", p.Path))

	tree, err := d.extract(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to extract notes", goerr.V("path", p.Path))
	}
	if tree.IsEmpty() {
		return goerr.Wrap(ErrEmptyExtraction, "failed to sync notes", goerr.V("path", p.Path))
	}

	if _, err := d.reconciler.Reconcile(ctx, tree, func(ctx context.Context, _ ItemProgress) {
		d.drainPriority(ctx)
	}); err != nil {
		return goerr.Wrap(err, "failed to reconcile notes", goerr.V("path", p.Path))
	}
	return nil
}

// HandleSystemControl starts or stops the watcher
func (d *Dispatcher) HandleSystemControl(ctx context.Context, p *model.SystemControl) (*model.WatcherStatus, error) {
	if d.watcher == nil {
		return nil, goerr.Wrap(ErrWatcherNotConfigured, "failed to control watcher", goerr.V("action", p.Action))
	}

	switch p.Action {
	case types.SystemActionStart:
		if err := d.watcher.Start(ctx); err != nil {
			return nil, goerr.Wrap(err, "failed to start watcher")
		}
	case types.SystemActionStop:
		if err := d.watcher.Stop(); err != nil {
			return nil, goerr.Wrap(err, "failed to stop watcher")
		}
	default:
		return nil, goerr.Wrap(ErrUnsupportedAction, "failed to control watcher", goerr.V("action", p.Action))
	}

	return &model.WatcherStatus{
		Running: d.watcher.Running(),
		Path:    d.watcher.Path(),
	}, nil
}

// HandleSetupStart runs the setup workflow
func (d *Dispatcher) HandleSetupStart(ctx context.Context, p *model.SetupStart) (*model.SetupComplete, error) {
	return d.tracker.Run(ctx)
}

// HandleSetupProgress forwards a progress snapshot to subscribers
func (d *Dispatcher) HandleSetupProgress(ctx context.Context, p *model.SetupProgress) error {
	d.broadcast(ctx, model.NewEvent(types.EventTypeSetupProgress, "", types.MessageStatusInProgress, p))
	return nil
}

// HandleSetupComplete forwards the final setup result to subscribers
func (d *Dispatcher) HandleSetupComplete(ctx context.Context, p *model.SetupComplete) error {
	status := types.MessageStatusSuccess
	if !p.Success {
		status = types.MessageStatusError
	}
	d.broadcast(ctx, model.NewEvent(types.EventTypeSetupComplete, "", status, p))
	return nil
}

func (d *Dispatcher) broadcast(ctx context.Context, ev *model.Event) {
	if d.broadcaster == nil {
		return
	}
	d.broadcaster.Broadcast(ctx, ev)
}
