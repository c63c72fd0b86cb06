package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"github.com/secmon-lab/notelens/pkg/utils/async"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

// request is an inbound subscriber message
type request struct {
	Type      types.RequestType `json:"type"`
	RequestID string            `json:"requestId"`
	Timestamp any               `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
}

type searchPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func invalidMessage(requestID, msg string, details map[string]any) *model.Event {
	return model.NewErrorEvent(requestID, types.ErrorCodeInvalidMessage, msg, details)
}

// handleMessage validates one inbound frame and routes it. Protocol errors
// are answered on this connection only.
func (g *Gateway) handleMessage(ctx context.Context, sub *subscriber, data []byte) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		sub.send(ctx, invalidMessage("", "Invalid JSON format", nil))
		return
	}

	sch, err := requestSchema()
	if err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to compile request schema"), "request schema is broken")
		sub.send(ctx, model.NewErrorEvent("", types.ErrorCodeProcessingError, err.Error(), nil))
		return
	}
	if err := sch.Validate(inst); err != nil {
		sub.send(ctx, invalidMessage(requestIDOf(inst), "Invalid message format", map[string]any{
			"reason": err.Error(),
		}))
		return
	}

	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		sub.send(ctx, invalidMessage("", "Invalid JSON format", nil))
		return
	}

	ctx = logging.With(ctx, logging.From(ctx).With(
		slog.String("request_id", req.RequestID),
		slog.String("request_type", string(req.Type)),
	))

	switch req.Type {
	case types.RequestTypePing:
		sub.send(ctx, model.NewEvent(types.EventTypePong, req.RequestID, types.MessageStatusSuccess, nil))

	case types.RequestTypeSearch:
		g.dispatch(ctx, sub, req, g.handleSearch)

	case types.RequestTypeSetupStart:
		g.dispatch(ctx, sub, req, g.handleSetupStart)

	default:
		sub.send(ctx, model.NewErrorEvent(req.RequestID, types.ErrorCodeUnknownType,
			fmt.Sprintf("Unknown message type: %s", req.Type), nil))
	}
}

type requestFunc func(ctx context.Context, req request) (*model.Event, error)

// dispatch runs fn off the read loop so a long setup does not block pings
// and searches of the same subscriber
func (g *Gateway) dispatch(ctx context.Context, sub *subscriber, req request, fn requestFunc) {
	async.Dispatch(ctx, string(req.Type), func(ctx context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(ctx, goerr.New("panic in request handler", goerr.V("panic", r)), "request handler panicked")
				sub.send(ctx, model.NewErrorEvent(req.RequestID, types.ErrorCodeProcessingError,
					fmt.Sprintf("%v", r), nil))
			}
		}()

		ev, err := fn(ctx, req)
		if ev != nil {
			sub.send(ctx, ev)
		}
		if err != nil {
			sub.send(ctx, model.NewErrorEvent(req.RequestID, types.ErrorCodeHandlerError,
				fmt.Sprintf("Error processing %s: %s", req.Type, err.Error()), nil))
			return err
		}
		return nil
	})
}

func (g *Gateway) handleSearch(ctx context.Context, req request) (*model.Event, error) {
	var p searchPayload
	if len(req.Payload) > 0 && !bytes.Equal(req.Payload, []byte("null")) {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, goerr.Wrap(ErrInvalidPayload, "failed to decode search payload", goerr.V("reason", err.Error()))
		}
	}

	results, err := g.handler.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return nil, goerr.Wrap(err, "search failed", goerr.V("limit", p.Limit))
	}
	return model.NewEvent(types.EventTypeSearchResults, req.RequestID, types.MessageStatusSuccess,
		model.NewSearchResultsPayload(results)), nil
}

// handleSetupStart replies with setup_complete carrying the caller's request
// id, then reports the error of a failed run
func (g *Gateway) handleSetupStart(ctx context.Context, req request) (*model.Event, error) {
	result, err := g.handler.StartSetup(ctx)
	if result == nil {
		return nil, err
	}

	status := types.MessageStatusSuccess
	if !result.Success {
		status = types.MessageStatusError
	}
	return model.NewEvent(types.EventTypeSetupComplete, req.RequestID, status, result), err
}

func requestIDOf(inst any) string {
	obj, ok := inst.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := obj["requestId"].(string)
	return id
}
