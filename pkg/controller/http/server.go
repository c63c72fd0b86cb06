package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/secmon-lab/notelens/pkg/utils/safe"
)

// ProgressSource exposes the live setup progress
type ProgressSource interface {
	Snapshot() *model.SetupProgress
	Running() bool
}

// SubscriberGateway is the websocket endpoint mounted at /ws
type SubscriberGateway interface {
	http.Handler
	Count() int
	Running() bool
}

type Server struct {
	router   *chi.Mux
	gateway  SubscriberGateway
	progress ProgressSource
	watcher  interfaces.Watcher
}

type Options func(*Server)

func WithGateway(gw SubscriberGateway) Options {
	return func(s *Server) {
		s.gateway = gw
	}
}

func WithProgress(p ProgressSource) Options {
	return func(s *Server) {
		s.progress = p
	}
}

func WithWatcher(w interfaces.Watcher) Options {
	return func(s *Server) {
		s.watcher = w
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/api/status", s.statusHandler)

	if s.gateway != nil {
		r.Get("/ws", s.gateway.ServeHTTP)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	safe.Write(r.Context(), w, []byte("OK\n"))
}

type statusResponse struct {
	Setup          *model.SetupProgress `json:"setup"`
	SetupRunning   bool                 `json:"setup_running"`
	WatcherRunning bool                 `json:"watcher_running"`
	WatcherPath    string               `json:"watcher_path,omitempty"`
	Subscribers    int                  `json:"subscribers"`
}

// statusHandler serves the setup progress and the state of the service parts
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if s.progress != nil {
		resp.Setup = s.progress.Snapshot()
		resp.SetupRunning = s.progress.Running()
	}
	if s.watcher != nil {
		resp.WatcherRunning = s.watcher.Running()
		resp.WatcherPath = s.watcher.Path()
	}
	if s.gateway != nil {
		resp.Subscribers = s.gateway.Count()
	}

	data, err := json.Marshal(resp)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal status response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, data)
}
