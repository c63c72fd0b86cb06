package model

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/notelens/pkg/domain/types"
)

// MessageID correlates a bus request with its reply
type MessageID string

// NewMessageID generates a random MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Payload is the closed set of bus message variants. Only types in this
// package implement it; Accept routes each variant to its PayloadHandler method
// so a new variant cannot be added without every handler implementing it.
type Payload interface {
	Kind() types.MessageKind
	Priority() types.Priority
	NeedsResponse() bool
	Accept(ctx context.Context, h PayloadHandler) (any, error)

	sealed()
}

// PayloadHandler handles every bus message variant
type PayloadHandler interface {
	HandleSearchRequest(ctx context.Context, p *SearchRequest) ([]*SearchResult, error)
	HandleSourceChanged(ctx context.Context, p *SourceChanged) error
	HandleSystemControl(ctx context.Context, p *SystemControl) (*WatcherStatus, error)
	HandleSetupStart(ctx context.Context, p *SetupStart) (*SetupComplete, error)
	HandleSetupProgress(ctx context.Context, p *SetupProgress) error
	HandleSetupComplete(ctx context.Context, p *SetupComplete) error
}

// SearchRequest asks for the documents most similar to Query
type SearchRequest struct {
	Query string
	Limit int
}

func (p *SearchRequest) Kind() types.MessageKind  { return types.MessageKindSearchRequest }
func (p *SearchRequest) Priority() types.Priority { return types.PriorityMain }
func (p *SearchRequest) NeedsResponse() bool      { return true }
func (p *SearchRequest) sealed()                  {}
func (p *SearchRequest) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return h.HandleSearchRequest(ctx, p)
}

// SourceChanged notifies that the source note store was modified
type SourceChanged struct {
	Path string
}

func (p *SourceChanged) Kind() types.MessageKind  { return types.MessageKindSourceChanged }
func (p *SourceChanged) Priority() types.Priority { return types.PriorityMain }
func (p *SourceChanged) NeedsResponse() bool      { return false }
func (p *SourceChanged) sealed()                  {}
func (p *SourceChanged) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return nil, h.HandleSourceChanged(ctx, p)
}

// SystemControl starts or stops the source watcher
type SystemControl struct {
	Action types.SystemAction
}

func (p *SystemControl) Kind() types.MessageKind  { return types.MessageKindSystemControl }
func (p *SystemControl) Priority() types.Priority { return types.PriorityMain }
func (p *SystemControl) NeedsResponse() bool      { return true }
func (p *SystemControl) sealed()                  {}
func (p *SystemControl) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return h.HandleSystemControl(ctx, p)
}

// SetupStart runs the setup workflow
type SetupStart struct{}

func (p *SetupStart) Kind() types.MessageKind  { return types.MessageKindSetupStart }
func (p *SetupStart) Priority() types.Priority { return types.PriorityMain }
func (p *SetupStart) NeedsResponse() bool      { return true }
func (p *SetupStart) sealed()                  {}
func (p *SetupStart) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return h.HandleSetupStart(ctx, p)
}

func (p *SetupProgress) Kind() types.MessageKind  { return types.MessageKindSetupProgress }
func (p *SetupProgress) Priority() types.Priority { return types.PriorityHigh }
func (p *SetupProgress) NeedsResponse() bool      { return false }
func (p *SetupProgress) sealed()                  {}
func (p *SetupProgress) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return nil, h.HandleSetupProgress(ctx, p)
}

func (p *SetupComplete) Kind() types.MessageKind  { return types.MessageKindSetupComplete }
func (p *SetupComplete) Priority() types.Priority { return types.PriorityHigh }
func (p *SetupComplete) NeedsResponse() bool      { return false }
func (p *SetupComplete) sealed()                  {}
func (p *SetupComplete) Accept(ctx context.Context, h PayloadHandler) (any, error) {
	return nil, h.HandleSetupComplete(ctx, p)
}

// Reply is the value placed on a request's reply channel
type Reply struct {
	Value any
	Err   error
}

// Message is the bus envelope around a Payload
type Message struct {
	ID        MessageID
	Payload   Payload
	CreatedAt time.Time

	reply     chan<- Reply
	replyOnce sync.Once
}

// NewMessage wraps payload in a new envelope
func NewMessage(payload Payload) *Message {
	return &Message{
		ID:        NewMessageID(),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// NeedsResponse reports whether the sender waits for a reply
func (m *Message) NeedsResponse() bool {
	return m.Payload.NeedsResponse()
}

// SetReplyChannel attaches the one-shot channel Respond writes to. The
// channel must have a buffer of at least one.
func (m *Message) SetReplyChannel(ch chan<- Reply) {
	m.reply = ch
}

// Respond fulfills the reply channel. Only the first call has an effect; it
// returns false when there is no channel or it was already fulfilled.
func (m *Message) Respond(value any, err error) bool {
	if m.reply == nil {
		return false
	}
	sent := false
	m.replyOnce.Do(func() {
		m.reply <- Reply{Value: value, Err: err}
		sent = true
	})
	return sent
}
