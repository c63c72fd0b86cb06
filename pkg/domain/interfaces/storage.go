package interfaces

import (
	"context"

	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// StorageGateway is the synchronous CRUD and similarity search facade used by
// the dispatch loop. Implementations are not required to be safe for
// concurrent use.
type StorageGateway interface {
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, uuid model.DocumentUUID) error
	Get(ctx context.Context, uuid model.DocumentUUID) (*model.Document, error)
	GetMany(ctx context.Context, uuids []model.DocumentUUID) ([]*model.Document, error)
	ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error)
	Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error)
	Ping(ctx context.Context) error
}

// Embedder converts text into a fixed dimension vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
