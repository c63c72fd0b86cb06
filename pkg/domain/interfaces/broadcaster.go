package interfaces

import (
	"context"

	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// Broadcaster delivers events to every connected subscriber
type Broadcaster interface {
	Broadcast(ctx context.Context, ev *model.Event)

	// Running reports whether the gateway accepts subscribers
	Running() bool
}

// Watcher emits source change notifications while running
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	Path() string
}
