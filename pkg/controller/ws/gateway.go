package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	DefaultPingInterval = 20 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultOutboxSize   = 256
	DefaultReadLimit    = 1 << 20

	shutdownReason = "Server shutting down"
)

// Handler serves the requests subscribers may send
type Handler interface {
	Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error)
	StartSetup(ctx context.Context) (*model.SetupComplete, error)
}

// Gateway holds the connected subscribers. Every subscriber receives every
// broadcast event; replies go only to the subscriber that asked.
type Gateway struct {
	handler Handler

	pingInterval   time.Duration
	writeTimeout   time.Duration
	outboxSize     int
	originPatterns []string

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

var _ interfaces.Broadcaster = &Gateway{}

type Option func(*Gateway)

// WithPingInterval sets the keepalive ping interval
func WithPingInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pingInterval = d
		}
	}
}

// WithWriteTimeout bounds a single frame write
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// WithOutboxSize sets how many events may wait for one subscriber
func WithOutboxSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.outboxSize = n
		}
	}
}

// WithOriginPatterns allows cross origin handshakes from the given hosts
func WithOriginPatterns(patterns ...string) Option {
	return func(g *Gateway) {
		g.originPatterns = append(g.originPatterns, patterns...)
	}
}

func New(handler Handler, opts ...Option) *Gateway {
	g := &Gateway{
		handler:      handler,
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		outboxSize:   DefaultOutboxSize,
		subscribers:  make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Running reports whether new subscribers are accepted
func (g *Gateway) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.closed
}

// Count returns the number of connected subscribers
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subscribers)
}

// ServeHTTP upgrades the request and serves the subscriber until it
// disconnects or the gateway closes
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !g.Running() {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(ErrClosed, "rejected subscriber"), http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		// Accept already wrote the response
		logging.From(ctx).Warn("Failed to accept websocket", slog.Any("error", err))
		return
	}
	conn.SetReadLimit(DefaultReadLimit)

	sub := newSubscriber(uuid.NewString(), conn, g.outboxSize)
	if !g.add(sub) {
		_ = conn.Close(websocket.StatusGoingAway, shutdownReason)
		return
	}

	logger := logging.From(ctx).With(slog.String("subscriber_id", sub.id))
	ctx = logging.With(context.WithoutCancel(ctx), logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("Subscriber connected", slog.String("remote", r.RemoteAddr))

	go sub.writeLoop(ctx, g.pingInterval, g.writeTimeout)
	g.readLoop(ctx, sub)

	g.remove(sub)
	sub.shutdown(websocket.StatusNormalClosure, "")
	logger.Info("Subscriber disconnected")
}

func (g *Gateway) readLoop(ctx context.Context, sub *subscriber) {
	for {
		typ, data, err := sub.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && ctx.Err() == nil {
				logging.From(ctx).Debug("Subscriber read ended", slog.Any("error", err))
			}
			return
		}
		if typ != websocket.MessageText {
			sub.send(ctx, invalidMessage("", "Invalid JSON format", nil))
			continue
		}

		g.handleMessage(ctx, sub, data)
	}
}

// Broadcast queues ev for every subscriber. It never blocks; a subscriber
// whose outbox is full is disconnected.
func (g *Gateway) Broadcast(ctx context.Context, ev *model.Event) {
	g.mu.RLock()
	subs := make([]*subscriber, 0, len(g.subscribers))
	for _, sub := range g.subscribers {
		subs = append(subs, sub)
	}
	g.mu.RUnlock()

	for _, sub := range subs {
		sub.send(ctx, ev)
	}
}

// Close stops accepting subscribers and closes every connection with 1001
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	subs := make([]*subscriber, 0, len(g.subscribers))
	for _, sub := range g.subscribers {
		subs = append(subs, sub)
	}
	g.mu.Unlock()

	logging.From(ctx).Info("Closing subscribers", slog.Int("count", len(subs)))

	var eg errgroup.Group
	for _, sub := range subs {
		eg.Go(func() error {
			sub.shutdown(websocket.StatusGoingAway, shutdownReason)
			return nil
		})
	}
	return eg.Wait()
}

func (g *Gateway) add(sub *subscriber) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.subscribers[sub.id] = sub
	return true
}

func (g *Gateway) remove(sub *subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subscribers, sub.id)
}

type subscriber struct {
	id     string
	conn   *websocket.Conn
	outbox chan *model.Event

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(id string, conn *websocket.Conn, size int) *subscriber {
	return &subscriber{
		id:     id,
		conn:   conn,
		outbox: make(chan *model.Event, size),
		done:   make(chan struct{}),
	}
}

// send queues ev without blocking
func (s *subscriber) send(ctx context.Context, ev *model.Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.outbox <- ev:
	case <-s.done:
	default:
		_ = errutil.Handle(ctx, goerr.Wrap(ErrSlowSubscriber, "dropping subscriber",
			goerr.V("subscriber_id", s.id),
			goerr.V("event_type", ev.Type),
		), "subscriber is too slow")
		go s.shutdown(websocket.StatusTryAgainLater, "subscriber too slow")
	}
}

func (s *subscriber) writeLoop(ctx context.Context, pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.outbox:
			if err := s.write(ctx, ev, writeTimeout); err != nil {
				logging.From(ctx).Warn("Failed to write event", slog.Any("error", err))
				go s.shutdown(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logging.From(ctx).Info("Subscriber did not answer ping", slog.Any("error", err))
				go s.shutdown(websocket.StatusPolicyViolation, "ping timeout")
				return
			}

		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscriber) write(ctx context.Context, ev *model.Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := wsjson.Write(ctx, s.conn, ev); err != nil {
		return goerr.Wrap(err, "failed to write event",
			goerr.V("subscriber_id", s.id),
			goerr.V("event_type", ev.Type),
		)
	}
	return nil
}

// shutdown closes the connection once with the close frame code
func (s *subscriber) shutdown(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close(code, reason)
	})
}
