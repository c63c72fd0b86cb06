package bus

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
)

const DefaultReplyTimeout = 30 * time.Second

var (
	// ErrClosed is returned once the bus has been closed
	ErrClosed = goerr.New("message bus is closed")
	// ErrReplyTimeout is returned when no reply arrives within the wait limit
	ErrReplyTimeout = goerr.New("timed out waiting for reply")
)

// Bus is a two lane, single consumer message queue. The high priority lane
// is always drained before the main lane and each lane is FIFO. Enqueueing
// never blocks.
type Bus struct {
	mu       sync.Mutex
	priority []*model.Message
	main     []*model.Message
	pending  map[model.MessageID]*model.Message
	closed   bool

	notify       chan struct{}
	replyTimeout time.Duration
}

type Option func(*Bus)

// WithReplyTimeout sets the wait limit used by Send for request payloads
func WithReplyTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.replyTimeout = d
		}
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		pending:      make(map[model.MessageID]*model.Message),
		notify:       make(chan struct{}, 1),
		replyTimeout: DefaultReplyTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send enqueues payload. Fire-and-forget payloads return immediately with a
// nil value; request payloads wait for the reply up to the bus reply timeout.
func (b *Bus) Send(ctx context.Context, payload model.Payload) (any, error) {
	if !payload.NeedsResponse() {
		_, err := b.enqueue(payload, nil)
		return nil, err
	}
	return b.Request(ctx, payload, b.replyTimeout)
}

// Request enqueues payload with a reply channel registered under its
// correlation id and waits for the reply. A non-positive timeout falls back
// to the bus default. The registration is removed on every return path.
func (b *Bus) Request(ctx context.Context, payload model.Payload, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = b.replyTimeout
	}

	ch := make(chan model.Reply, 1)
	msg, err := b.enqueue(payload, ch)
	if err != nil {
		return nil, err
	}
	defer b.unregister(msg.ID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply.Value, reply.Err
	case <-timer.C:
		return nil, goerr.Wrap(ErrReplyTimeout, "no reply from dispatcher",
			goerr.V("kind", payload.Kind()),
			goerr.V("message_id", msg.ID),
			goerr.V("timeout", timeout),
		)
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "request cancelled",
			goerr.V("kind", payload.Kind()),
			goerr.V("message_id", msg.ID),
		)
	}
}

func (b *Bus) enqueue(payload model.Payload, reply chan model.Reply) (*model.Message, error) {
	msg := model.NewMessage(payload)
	if reply != nil {
		msg.SetReplyChannel(reply)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, goerr.Wrap(ErrClosed, "failed to send message", goerr.V("kind", payload.Kind()))
	}
	if reply != nil {
		b.pending[msg.ID] = msg
	}
	if payload.Priority() == types.PriorityHigh {
		b.priority = append(b.priority, msg)
	} else {
		b.main = append(b.main, msg)
	}
	b.mu.Unlock()

	b.signal()
	return msg, nil
}

func (b *Bus) unregister(id model.MessageID) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bus) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available and returns it, priority lane
// first. It returns ErrClosed once the bus is closed, regardless of any
// queued messages.
func (b *Bus) Next(ctx context.Context) (*model.Message, error) {
	for {
		msg, err := b.pop(false)
		if err != nil || msg != nil {
			return msg, err
		}

		select {
		case <-b.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// NextPriority returns the head of the priority lane without blocking
func (b *Bus) NextPriority() (*model.Message, bool) {
	msg, err := b.pop(true)
	if err != nil || msg == nil {
		return nil, false
	}
	return msg, true
}

// Signal is readied whenever a message is enqueued. Only the single consumer
// may wait on it.
func (b *Bus) Signal() <-chan struct{} {
	return b.notify
}

func (b *Bus) pop(priorityOnly bool) (*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	if len(b.priority) > 0 {
		msg := b.priority[0]
		b.priority[0] = nil
		b.priority = b.priority[1:]
		return msg, nil
	}
	if priorityOnly {
		return nil, nil
	}
	if len(b.main) > 0 {
		msg := b.main[0]
		b.main[0] = nil
		b.main = b.main[1:]
		return msg, nil
	}
	return nil, nil
}

// TakeMain removes every queued main lane message of the given kinds and
// returns them in arrival order. The remaining messages keep their order.
func (b *Bus) TakeMain(kinds ...types.MessageKind) []*model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(b.main) == 0 {
		return nil
	}

	var taken []*model.Message
	kept := b.main[:0]
	for _, msg := range b.main {
		if slices.Contains(kinds, msg.Payload.Kind()) {
			taken = append(taken, msg)
			continue
		}
		kept = append(kept, msg)
	}
	clear(b.main[len(kept):])
	b.main = kept
	return taken
}

// Len returns the number of queued messages per lane
func (b *Bus) Len() (priority, main int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.priority), len(b.main)
}

// Close stops the bus. Waiting requesters receive ErrClosed and queued
// messages are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := b.pending
	b.pending = make(map[model.MessageID]*model.Message)
	b.priority = nil
	b.main = nil
	b.mu.Unlock()

	for _, msg := range pending {
		msg.Respond(nil, ErrClosed)
	}
	b.signal()
}
