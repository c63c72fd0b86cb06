package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

// Service names reported when the initial check fails
const (
	ServiceDatabase  = "database"
	ServiceWebSocket = "websocket"
	ServiceWatcher   = "watcher"
)

// Sender puts payloads on the message bus
type Sender interface {
	Send(ctx context.Context, payload model.Payload) (any, error)
}

// ExtractFunc runs one extraction, forwarding its progress
type ExtractFunc func(ctx context.Context, progress interfaces.ProgressFunc) (*model.DocumentTree, error)

// SetupTracker drives the setup workflow and owns its live progress state.
// Every state change is published as a SetupProgress copy on the bus
// priority lane.
type SetupTracker struct {
	sender      Sender
	storage     interfaces.StorageGateway
	broadcaster interfaces.Broadcaster
	watcher     interfaces.Watcher
	reconciler  *Reconciler
	extract     ExtractFunc
	yield       func(ctx context.Context)

	mu      sync.Mutex
	running bool
	state   model.SetupProgress
}

// TrackerOption is a functional option for SetupTracker
type TrackerOption func(*SetupTracker)

// WithBroadcaster sets the subscriber gateway checked during initialization
func WithBroadcaster(b interfaces.Broadcaster) TrackerOption {
	return func(t *SetupTracker) {
		t.broadcaster = b
	}
}

// WithWatcher sets the watcher checked during initialization
func WithWatcher(w interfaces.Watcher) TrackerOption {
	return func(t *SetupTracker) {
		t.watcher = w
	}
}

// WithYield sets a hook run after each published progress event. The
// dispatcher uses it to deliver queued priority messages while setup runs.
func WithYield(fn func(ctx context.Context)) TrackerOption {
	return func(t *SetupTracker) {
		t.yield = fn
	}
}

// NewSetupTracker creates a tracker in the idle stage
func NewSetupTracker(sender Sender, storage interfaces.StorageGateway, reconciler *Reconciler, extract ExtractFunc, opts ...TrackerOption) *SetupTracker {
	t := &SetupTracker{
		sender:     sender,
		storage:    storage,
		reconciler: reconciler,
		extract:    extract,
		state: model.SetupProgress{
			Stage:  types.SetupStageIdle,
			Status: types.SetupStatusStarting,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot returns a copy of the current progress
func (t *SetupTracker) Snapshot() *model.SetupProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Running reports whether a setup run is in flight
func (t *SetupTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *SetupTracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.state = model.SetupProgress{
		Stage:  types.SetupStageIdle,
		Status: types.SetupStatusStarting,
	}
	return true
}

func (t *SetupTracker) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// update mutates the state under lock and returns a copy to publish
func (t *SetupTracker) update(fn func(s *model.SetupProgress)) *model.SetupProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
	return t.state.Clone()
}

// transition moves to stage, refusing illegal moves
func (t *SetupTracker) transition(ctx context.Context, stage types.SetupStage, status types.SetupStatus, msg string) error {
	var from types.SetupStage
	var legal bool
	snapshot := t.update(func(s *model.SetupProgress) {
		from = s.Stage
		if legal = s.Stage.CanTransitionTo(stage); !legal {
			return
		}
		s.Stage = stage
		s.Status = status
		s.Message = msg
		s.CurrentItem = nil
	})
	if !legal {
		return goerr.New("illegal setup transition", goerr.V("from", from), goerr.V("to", stage))
	}

	logging.From(ctx).Info("Setup stage started",
		slog.String(StageKey, stage.String()),
		slog.String("status", status.String()),
	)
	t.publish(ctx, snapshot)
	return nil
}

// report publishes a status change within the current stage
func (t *SetupTracker) report(ctx context.Context, status types.SetupStatus, msg string) {
	t.publish(ctx, t.update(func(s *model.SetupProgress) {
		s.Status = status
		s.Message = msg
	}))
}

func (t *SetupTracker) publish(ctx context.Context, snapshot *model.SetupProgress) {
	if _, err := t.sender.Send(ctx, snapshot); err != nil {
		logging.From(ctx).Warn("Failed to publish setup progress", slog.Any("error", err))
		return
	}
	if t.yield != nil {
		t.yield(ctx)
	}
}

// Run executes one setup: initializing, parsing and processing. The returned
// SetupComplete is also published on the bus. A run requested while another
// is in flight is rejected with ErrSetupInProgress and does not touch the
// live state.
func (t *SetupTracker) Run(ctx context.Context) (*model.SetupComplete, error) {
	if !t.begin() {
		return nil, goerr.Wrap(ErrSetupInProgress, "setup rejected")
	}
	defer t.end()

	if err := t.transition(ctx, types.SetupStageInitializing, types.SetupStatusStarting, "Starting setup"); err != nil {
		return t.fail(ctx, err)
	}

	t.report(ctx, types.SetupStatusCheckingServices, "Checking services")
	if unavailable := t.unavailableServices(ctx); len(unavailable) > 0 {
		return t.fail(ctx, goerr.Wrap(ErrServicesUnavailable,
			"Required services unavailable: "+strings.Join(unavailable, ", "),
			goerr.V("services", unavailable),
		))
	}
	t.report(ctx, types.SetupStatusServicesReady, "All services ready")

	if err := t.transition(ctx, types.SetupStageParsing, types.SetupStatusReadingDatabase, "Reading Notes database"); err != nil {
		return t.fail(ctx, err)
	}

	// progress arrives from the extraction worker; it only ever sees this copy
	base := t.Snapshot()
	tree, err := t.extract(ctx, func(fraction float64, msg string) {
		p := base.Clone()
		p.Message = msg
		if _, err := t.sender.Send(ctx, p); err != nil {
			logging.From(ctx).Warn("Failed to publish extraction progress", slog.Any("error", err))
		}
	})
	if err != nil {
		return t.fail(ctx, goerr.Wrap(err, "failed to extract notes"))
	}
	if tree.IsEmpty() {
		return t.fail(ctx, goerr.Wrap(ErrEmptyExtraction, "failed to extract notes"))
	}
	t.report(ctx, types.SetupStatusDatabaseRead, fmt.Sprintf("Read %d notes", len(tree.Notes)))

	if err := t.transition(ctx, types.SetupStageProcessing, types.SetupStatusPreparingNotes, "Starting note processing"); err != nil {
		return t.fail(ctx, err)
	}
	stats, err := t.reconciler.Reconcile(ctx, tree, t.onItem)
	if err != nil {
		return t.fail(ctx, goerr.Wrap(err, "failed to process notes"))
	}

	snapshot := t.update(func(s *model.SetupProgress) {
		s.Stage = types.SetupStageComplete
		s.Status = types.SetupStatusCompleted
		s.Message = "Setup completed"
		s.CurrentItem = nil
		s.Stats = stats
	})
	t.publish(ctx, snapshot)

	result := &model.SetupComplete{Success: true, Stats: &stats}
	t.complete(ctx, result)
	return result, nil
}

func (t *SetupTracker) onItem(ctx context.Context, p ItemProgress) {
	if p.Processed == 0 {
		t.publish(ctx, t.update(func(s *model.SetupProgress) {
			total, processed := p.Total, 0
			s.TotalItems = &total
			s.ProcessedItems = &processed
		}))
		return
	}

	status := types.SetupStatusProcessingNotes
	msg := "Processing note: " + p.Current
	if p.Deleting {
		status = types.SetupStatusCleaningUp
		msg = "Removing note: " + p.Current
	}

	t.publish(ctx, t.update(func(s *model.SetupProgress) {
		total, processed, current := p.Total, p.Processed, p.Current
		s.Status = status
		s.Message = msg
		s.TotalItems = &total
		s.ProcessedItems = &processed
		s.CurrentItem = &current
		s.Stats = p.Stats
	}))
}

func (t *SetupTracker) unavailableServices(ctx context.Context) []string {
	var unavailable []string
	if t.storage == nil || t.storage.Ping(ctx) != nil {
		unavailable = append(unavailable, ServiceDatabase)
	}
	if t.broadcaster == nil || !t.broadcaster.Running() {
		unavailable = append(unavailable, ServiceWebSocket)
	}
	if t.watcher == nil || !t.watcher.Running() {
		unavailable = append(unavailable, ServiceWatcher)
	}
	return unavailable
}

// fail moves to the failed stage and publishes the failed result
func (t *SetupTracker) fail(ctx context.Context, err error) (*model.SetupComplete, error) {
	logging.From(ctx).Error("Setup failed", slog.Any("error", err))

	snapshot := t.update(func(s *model.SetupProgress) {
		s.Stage = types.SetupStageFailed
		s.Status = types.SetupStatusFailed
		s.Message = err.Error()
		s.CurrentItem = nil
	})
	t.publish(ctx, snapshot)

	result := &model.SetupComplete{Success: false, Error: err.Error()}
	t.complete(ctx, result)
	return result, err
}

func (t *SetupTracker) complete(ctx context.Context, result *model.SetupComplete) {
	if _, err := t.sender.Send(ctx, result); err != nil {
		logging.From(ctx).Warn("Failed to publish setup result", slog.Any("error", err))
		return
	}
	if t.yield != nil {
		t.yield(ctx)
	}
}
