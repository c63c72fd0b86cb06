package interfaces

import (
	"context"

	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// DocumentRepository persists documents together with their embedding. A
// document and its embedding are always written and removed as one unit.
type DocumentRepository interface {
	// Create stores a new document and returns it with its row ID assigned
	Create(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error)

	// Update replaces the document with the same UUID. Returns ErrNotFound if absent.
	Update(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error)

	// Delete removes the document and its embedding. Returns ErrNotFound if absent.
	Delete(ctx context.Context, uuid model.DocumentUUID) error

	// Get returns the document, or nil without error if it does not exist
	Get(ctx context.Context, uuid model.DocumentUUID) (*model.Document, error)

	// GetMany returns the stored documents among uuids; missing ones are omitted
	GetMany(ctx context.Context, uuids []model.DocumentUUID) ([]*model.Document, error)

	// ListUUIDs returns the UUID of every stored document
	ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error)

	// FindByEmbedding returns up to limit documents ordered by descending similarity
	FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)
}
