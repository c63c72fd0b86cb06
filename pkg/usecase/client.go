package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
)

// Requester is the bus surface used by Client
type Requester interface {
	Send(ctx context.Context, payload model.Payload) (any, error)
	Request(ctx context.Context, payload model.Payload, timeout time.Duration) (any, error)
}

// Config holds the reply timeouts applied by Client
type Config struct {
	SearchTimeout  time.Duration
	SetupTimeout   time.Duration
	ControlTimeout time.Duration
}

// DefaultConfig returns timeouts suited to a local Notes library. Setup
// covers up to three extraction attempts plus embedding every note.
func DefaultConfig() Config {
	return Config{
		SearchTimeout:  30 * time.Second,
		SetupTimeout:   30 * time.Minute,
		ControlTimeout: 10 * time.Second,
	}
}

// Client turns typed calls into bus messages and typed replies
type Client struct {
	bus Requester
	cfg Config
}

// NewClient creates a client over bus
func NewClient(bus Requester, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = def.SetupTimeout
	}
	if cfg.ControlTimeout <= 0 {
		cfg.ControlTimeout = def.ControlTimeout
	}
	return &Client{bus: bus, cfg: cfg}
}

// Search asks the dispatcher for the notes most similar to query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	v, err := c.bus.Request(ctx, &model.SearchRequest{Query: query, Limit: limit}, c.cfg.SearchTimeout)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	results, ok := v.([]*model.SearchResult)
	if !ok {
		return nil, goerr.Wrap(ErrUnexpectedReply, "invalid search reply", goerr.V("type", typeName(v)))
	}
	return results, nil
}

// StartSetup runs the setup workflow and waits for its outcome. A failed
// run returns both the failed result and the error.
func (c *Client) StartSetup(ctx context.Context) (*model.SetupComplete, error) {
	v, err := c.bus.Request(ctx, &model.SetupStart{}, c.cfg.SetupTimeout)
	result, _ := v.(*model.SetupComplete)
	if err != nil {
		return result, err
	}
	if result == nil {
		return nil, goerr.Wrap(ErrUnexpectedReply, "invalid setup reply", goerr.V("type", typeName(v)))
	}
	return result, nil
}

// ControlWatcher starts or stops the source watcher
func (c *Client) ControlWatcher(ctx context.Context, action types.SystemAction) (*model.WatcherStatus, error) {
	if !action.IsValid() {
		return nil, goerr.Wrap(ErrUnsupportedAction, "invalid watcher action", goerr.V("action", action))
	}
	v, err := c.bus.Request(ctx, &model.SystemControl{Action: action}, c.cfg.ControlTimeout)
	if err != nil {
		return nil, err
	}
	status, ok := v.(*model.WatcherStatus)
	if !ok || status == nil {
		return nil, goerr.Wrap(ErrUnexpectedReply, "invalid watcher reply", goerr.V("type", typeName(v)))
	}
	return status, nil
}

// NotifySourceChanged queues a sync without waiting for it
func (c *Client) NotifySourceChanged(ctx context.Context, path string) error {
	if _, err := c.bus.Send(ctx, &model.SourceChanged{Path: path}); err != nil {
		return goerr.Wrap(err, "failed to queue source change", goerr.V("path", path))
	}
	return nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
