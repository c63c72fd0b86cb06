package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/notelens/pkg/controller/http"
	"github.com/secmon-lab/notelens/pkg/controller/ws"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type fakeProgress struct {
	snapshot *model.SetupProgress
	running  bool
}

func (p *fakeProgress) Snapshot() *model.SetupProgress { return p.snapshot.Clone() }
func (p *fakeProgress) Running() bool                  { return p.running }

type fakeWatcher struct{ running bool }

func (w *fakeWatcher) Start(ctx context.Context) error { w.running = true; return nil }
func (w *fakeWatcher) Stop() error                     { w.running = false; return nil }
func (w *fakeWatcher) Running() bool                   { return w.running }
func (w *fakeWatcher) Path() string                    { return "/notes/NoteStore.sqlite" }

type nopHandler struct{}

func (nopHandler) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	return nil, nil
}

func (nopHandler) StartSetup(ctx context.Context) (*model.SetupComplete, error) {
	return &model.SetupComplete{Success: true}, nil
}

func TestHealth(t *testing.T) {
	srv := httpctrl.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)
	gt.Number(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Equal("OK\n")
}

func TestStatus(t *testing.T) {
	total := 12
	progress := &fakeProgress{
		snapshot: &model.SetupProgress{
			Stage:      types.SetupStageProcessing,
			Status:     types.SetupStatusProcessingNotes,
			TotalItems: &total,
			Stats:      model.Stats{New: 4},
		},
		running: true,
	}
	gw := ws.New(nopHandler{})
	srv := httpctrl.New(
		httpctrl.WithProgress(progress),
		httpctrl.WithWatcher(&fakeWatcher{running: true}),
		httpctrl.WithGateway(gw),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	gt.Number(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Header().Get("Content-Type")).Equal("application/json")

	var resp struct {
		Setup          model.SetupProgress `json:"setup"`
		SetupRunning   bool                `json:"setup_running"`
		WatcherRunning bool                `json:"watcher_running"`
		WatcherPath    string              `json:"watcher_path"`
		Subscribers    int                 `json:"subscribers"`
	}
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp.Setup.Stage).Equal(types.SetupStageProcessing)
	gt.Number(t, *resp.Setup.TotalItems).Equal(12)
	gt.Number(t, resp.Setup.Stats.New).Equal(4)
	gt.Bool(t, resp.SetupRunning).True()
	gt.Bool(t, resp.WatcherRunning).True()
	gt.String(t, resp.WatcherPath).Equal("/notes/NoteStore.sqlite")
	gt.Number(t, resp.Subscribers).Equal(0)
}

func TestStatus_WithoutComponents(t *testing.T) {
	srv := httpctrl.New()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	gt.Number(t, w.Code).Equal(http.StatusOK)
	body, err := io.ReadAll(w.Body)
	gt.NoError(t, err).Required()
	gt.String(t, string(body)).Contains(`"setup":null`)
}

func TestWebSocketRoute(t *testing.T) {
	gw := ws.New(nopHandler{})
	srv := httptest.NewServer(httpctrl.New(httpctrl.WithGateway(gw)))
	t.Cleanup(func() {
		_ = gw.Close(context.Background())
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	gt.NoError(t, err).Required()
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	gt.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping","requestId":"h1","timestamp":1}`))).Required()

	var ev model.Event
	gt.NoError(t, wsjson.Read(ctx, conn, &ev)).Required()
	gt.Value(t, ev.Type).Equal(types.EventTypePong)
	gt.String(t, ev.RequestID).Equal("h1")
}

func TestUnknownRoute(t *testing.T) {
	srv := httpctrl.New()
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	gt.Number(t, w.Code).Equal(http.StatusNotFound)
}
