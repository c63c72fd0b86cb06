package storage

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// DefaultSearchLimit is used when a search request carries no positive limit
const DefaultSearchLimit = 10

// MaxSearchLimit caps the number of results returned by a single search
const MaxSearchLimit = 100

var ErrEmptyQuery = goerr.New("search query is empty")

// Gateway couples document persistence with embedding generation so that a
// document and its vector are always written together
type Gateway struct {
	repo     interfaces.Repository
	embedder interfaces.Embedder
}

var _ interfaces.StorageGateway = &Gateway{}

// New creates a storage gateway
func New(repo interfaces.Repository, embedder interfaces.Embedder) *Gateway {
	return &Gateway{
		repo:     repo,
		embedder: embedder,
	}
}

func (g *Gateway) embed(ctx context.Context, doc *model.Document) ([]float32, error) {
	vec, err := g.embedder.Embed(ctx, doc.Plaintext)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed document", goerr.V("uuid", doc.UUID))
	}
	return vec, nil
}

// Create validates, embeds and stores a new document
func (g *Gateway) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid document")
	}

	vec, err := g.embed(ctx, doc)
	if err != nil {
		return nil, err
	}

	created, err := g.repo.Document().Create(ctx, doc, vec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create document", goerr.V("uuid", doc.UUID))
	}
	return created, nil
}

// Update replaces the stored document and its embedding
func (g *Gateway) Update(ctx context.Context, doc *model.Document) error {
	if err := doc.Validate(); err != nil {
		return goerr.Wrap(err, "invalid document")
	}

	vec, err := g.embed(ctx, doc)
	if err != nil {
		return err
	}

	if _, err := g.repo.Document().Update(ctx, doc, vec); err != nil {
		return goerr.Wrap(err, "failed to update document", goerr.V("uuid", doc.UUID))
	}
	return nil
}

// Delete removes the document and its embedding
func (g *Gateway) Delete(ctx context.Context, uuid model.DocumentUUID) error {
	if err := g.repo.Document().Delete(ctx, uuid); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("uuid", uuid))
	}
	return nil
}

// Get returns the stored document, or nil if it does not exist
func (g *Gateway) Get(ctx context.Context, uuid model.DocumentUUID) (*model.Document, error) {
	doc, err := g.repo.Document().Get(ctx, uuid)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("uuid", uuid))
	}
	return doc, nil
}

// GetMany returns the stored documents among uuids
func (g *Gateway) GetMany(ctx context.Context, uuids []model.DocumentUUID) ([]*model.Document, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	docs, err := g.repo.Document().GetMany(ctx, uuids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get documents", goerr.V("count", len(uuids)))
	}
	return docs, nil
}

// ListUUIDs returns every persisted uuid
func (g *Gateway) ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error) {
	uuids, err := g.repo.Document().ListUUIDs(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list document uuids")
	}
	return uuids, nil
}

// Search embeds query and returns the most similar documents
func (g *Gateway) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, goerr.Wrap(ErrEmptyQuery, "failed to search documents")
	}
	limit = normalizeLimit(limit)

	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}

	results, err := g.repo.Document().FindByEmbedding(ctx, vec, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search documents", goerr.V("limit", limit))
	}
	return results, nil
}

// Ping reports ErrUnavailable when the backing store cannot be reached
func (g *Gateway) Ping(ctx context.Context) error {
	if g.repo == nil {
		return goerr.Wrap(interfaces.ErrUnavailable, "repository is not configured")
	}
	if err := g.repo.Ping(ctx); err != nil {
		return goerr.Wrap(interfaces.ErrUnavailable, "repository is unreachable", goerr.V("cause", err.Error()))
	}
	return nil
}

// Count returns the number of stored documents
func (g *Gateway) Count(ctx context.Context) (int, error) {
	n, err := g.repo.Document().Count(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count documents")
	}
	return n, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}
