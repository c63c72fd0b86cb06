package interfaces

import "context"

// Repository defines the interface for data persistence
type Repository interface {
	Document() DocumentRepository

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}
