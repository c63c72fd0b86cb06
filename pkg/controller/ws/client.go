package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrRequestFailed = goerr.New("request failed")

// inbound is an event as seen by a client
type inbound struct {
	Type      types.EventType     `json:"type"`
	RequestID string              `json:"requestId"`
	Status    types.MessageStatus `json:"status"`
	Payload   json.RawMessage     `json:"payload"`
}

// Client talks to a running gateway
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the gateway at url, e.g. ws://127.0.0.1:8000/ws
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to notelens", goerr.V("url", url))
	}
	conn.SetReadLimit(DefaultReadLimit)
	return &Client{conn: conn}, nil
}

// Close ends the connection normally
func (c *Client) Close() error {
	if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		return goerr.Wrap(err, "failed to close connection")
	}
	return nil
}

func (c *Client) send(ctx context.Context, reqType types.RequestType, payload any) (string, error) {
	id := uuid.NewString()
	msg := map[string]any{
		"type":      reqType,
		"requestId": id,
		"timestamp": float64(time.Now().UnixMicro()) / 1e6,
		"payload":   payload,
	}
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return "", goerr.Wrap(err, "failed to send request", goerr.V("type", reqType))
	}
	return id, nil
}

// await reads events until the reply to requestID arrives. Broadcast events
// read on the way are passed to onEvent.
func (c *Client) await(ctx context.Context, requestID string, onEvent func(*inbound)) (*inbound, error) {
	for {
		var ev inbound
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			return nil, goerr.Wrap(err, "failed to read event")
		}
		if ev.RequestID != requestID {
			if onEvent != nil {
				onEvent(&ev)
			}
			continue
		}
		if ev.Type == types.EventTypeError {
			var p model.ErrorPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, goerr.Wrap(err, "failed to decode error event")
			}
			return nil, goerr.Wrap(ErrRequestFailed, p.Error.Message, goerr.V("code", p.Error.Code))
		}
		return &ev, nil
	}
}

// Search runs a similarity search on the server
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.SearchResultItem, error) {
	id, err := c.send(ctx, types.RequestTypeSearch, searchPayload{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	ev, err := c.await(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	var p model.SearchResultsPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search results")
	}
	return p.Results, nil
}

// Setup starts a full synchronization and waits for it. Progress events are
// passed to onProgress.
func (c *Client) Setup(ctx context.Context, onProgress func(*model.SetupProgress)) (*model.SetupComplete, error) {
	id, err := c.send(ctx, types.RequestTypeSetupStart, map[string]any{})
	if err != nil {
		return nil, err
	}

	ev, err := c.await(ctx, id, func(ev *inbound) {
		if ev.Type != types.EventTypeSetupProgress || onProgress == nil {
			return
		}
		var p model.SetupProgress
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			onProgress(&p)
		}
	})
	if err != nil {
		return nil, err
	}

	var result model.SetupComplete
	if err := json.Unmarshal(ev.Payload, &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode setup result")
	}
	if ev.Status == types.MessageStatusError {
		return &result, goerr.Wrap(ErrRequestFailed, "setup failed", goerr.V("error", result.Error))
	}
	return &result, nil
}
