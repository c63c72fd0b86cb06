package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/repository/memory"
	"github.com/secmon-lab/notelens/pkg/service/storage"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// ----- tree builders -----

type rawNote struct {
	UUID         string `json:"uuid,omitempty"`
	Title        string `json:"title"`
	Plaintext    string `json:"plaintext"`
	CreationTime string `json:"creation_time"`
	ModifyTime   string `json:"modify_time"`
	FolderKey    int64  `json:"folder_key"`
	AccountKey   int64  `json:"account_key"`
}

func noteJSON(t *testing.T, uuid string, folderKey int64, modified time.Time) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(rawNote{
		UUID:         uuid,
		Title:        "note " + uuid,
		Plaintext:    "body of " + uuid,
		CreationTime: baseTime.Add(-24 * time.Hour).Format(model.NoteTimeLayout),
		ModifyTime:   modified.Format(model.NoteTimeLayout),
		FolderKey:    folderKey,
		AccountKey:   1,
	})
	gt.NoError(t, err).Required()
	return raw
}

const (
	notesFolder = 2
	trashFolder = 3
)

func newTree(notes map[string]json.RawMessage, withTrash bool) *model.DocumentTree {
	folders := map[string]model.Folder{
		"2": {UUID: "DefaultFolder-CloudKit", Name: "Notes"},
	}
	if withTrash {
		folders["3"] = model.Folder{UUID: model.TrashFolderUUID, Name: "Recently Deleted"}
	}
	return &model.DocumentTree{
		Version:  json.RawMessage(`"1"`),
		Notes:    notes,
		Folders:  folders,
		Accounts: map[string]json.RawMessage{"1": json.RawMessage(`{}`)},
	}
}

// ----- storage -----

type fakeEmbedder struct{}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := []float32{0, 0, 0, 0}
	for i, w := range []string{"alpha", "beta", "gamma", "delta"} {
		if strings.Contains(text, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (e *fakeEmbedder) Dimension() int { return 4 }

// recordingGateway counts write calls and can fail chosen operations
type recordingGateway struct {
	interfaces.StorageGateway

	mu      sync.Mutex
	creates map[model.DocumentUUID]int
	updates map[model.DocumentUUID]int
	deletes map[model.DocumentUUID]int

	failCreate  map[model.DocumentUUID]bool
	failList    bool
	pingErr     error
	searchPanic bool
}

func newGateway() *recordingGateway {
	return &recordingGateway{
		StorageGateway: storage.New(memory.New(), &fakeEmbedder{}),
		creates:        map[model.DocumentUUID]int{},
		updates:        map[model.DocumentUUID]int{},
		deletes:        map[model.DocumentUUID]int{},
		failCreate:     map[model.DocumentUUID]bool{},
	}
}

func (g *recordingGateway) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	g.mu.Lock()
	g.creates[doc.UUID]++
	fail := g.failCreate[doc.UUID]
	g.mu.Unlock()
	if fail {
		return nil, errors.New("embedding API unavailable")
	}
	return g.StorageGateway.Create(ctx, doc)
}

func (g *recordingGateway) Update(ctx context.Context, doc *model.Document) error {
	g.mu.Lock()
	g.updates[doc.UUID]++
	g.mu.Unlock()
	return g.StorageGateway.Update(ctx, doc)
}

func (g *recordingGateway) Delete(ctx context.Context, uuid model.DocumentUUID) error {
	g.mu.Lock()
	g.deletes[uuid]++
	g.mu.Unlock()
	return g.StorageGateway.Delete(ctx, uuid)
}

func (g *recordingGateway) ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error) {
	if g.failList {
		return nil, errors.New("database is locked")
	}
	return g.StorageGateway.ListUUIDs(ctx)
}

func (g *recordingGateway) Ping(ctx context.Context) error {
	if g.pingErr != nil {
		return g.pingErr
	}
	return g.StorageGateway.Ping(ctx)
}

func (g *recordingGateway) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	if g.searchPanic {
		panic("search exploded")
	}
	return g.StorageGateway.Search(ctx, query, limit)
}

func (g *recordingGateway) writes() (creates, updates, deletes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.creates {
		creates += n
	}
	for _, n := range g.updates {
		updates += n
	}
	for _, n := range g.deletes {
		deletes += n
	}
	return
}

// seed stores a document directly, bypassing the counters
func (g *recordingGateway) seed(t *testing.T, uuid string, modified time.Time) {
	t.Helper()
	_, err := g.StorageGateway.Create(t.Context(), &model.Document{
		UUID:         model.DocumentUUID(uuid),
		Title:        "note " + uuid,
		Plaintext:    "body of " + uuid,
		CreationTime: baseTime.Add(-24 * time.Hour),
		ModifyTime:   modified,
		FolderKey:    notesFolder,
		AccountKey:   1,
	})
	gt.NoError(t, err).Required()
}

// ----- extraction -----

type fakeExtractor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, progress interfaces.ProgressFunc) (*model.DocumentTree, error)
}

func (x *fakeExtractor) Extract(ctx context.Context, sourcePath string, progress interfaces.ProgressFunc) (*model.DocumentTree, error) {
	x.calls.Add(1)
	return x.fn(ctx, progress)
}

func (x *fakeExtractor) SourcePath() string {
	return "/Users/test/Library/Group Containers/group.com.apple.notes/NoteStore.sqlite"
}

func returnTree(tree *model.DocumentTree) *fakeExtractor {
	return &fakeExtractor{fn: func(ctx context.Context, progress interfaces.ProgressFunc) (*model.DocumentTree, error) {
		if progress != nil {
			progress(0.5, "parsing")
		}
		return tree, nil
	}}
}

// ----- subscribers and watcher -----

type fakeBroadcaster struct {
	mu      sync.Mutex
	events  []*model.Event
	running bool
	notify  chan *model.Event
}

func newBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{running: true, notify: make(chan *model.Event, 1024)}
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, ev *model.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	select {
	case b.notify <- ev:
	default:
	}
}

func (b *fakeBroadcaster) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *fakeBroadcaster) Events() []*model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.Event, len(b.events))
	copy(out, b.events)
	return out
}

type fakeWatcher struct {
	mu      sync.Mutex
	running bool
	err     error
}

func (w *fakeWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.running = true
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	return nil
}

func (w *fakeWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *fakeWatcher) Path() string { return "/tmp/NoteStore.sqlite" }

// ----- bus sender -----

// recordingSender captures payloads in send order
type recordingSender struct {
	mu       sync.Mutex
	payloads []model.Payload
}

func (s *recordingSender) Send(ctx context.Context, payload model.Payload) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil, nil
}

func (s *recordingSender) progress() []*model.SetupProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SetupProgress
	for _, p := range s.payloads {
		if sp, ok := p.(*model.SetupProgress); ok {
			out = append(out, sp)
		}
	}
	return out
}

func (s *recordingSender) completes() []*model.SetupComplete {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SetupComplete
	for _, p := range s.payloads {
		if sc, ok := p.(*model.SetupComplete); ok {
			out = append(out, sc)
		}
	}
	return out
}
