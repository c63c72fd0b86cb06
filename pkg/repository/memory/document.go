package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

type documentEntry struct {
	doc       *model.Document
	embedding []float32
}

type documentRepository struct {
	mu      sync.RWMutex
	entries map[model.DocumentUUID]*documentEntry
	nextID  int64
}

func newDocumentRepository() *documentRepository {
	return &documentRepository{
		entries: make(map[model.DocumentUUID]*documentEntry),
		nextID:  1,
	}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[doc.UUID]; exists {
		return nil, goerr.New("document already exists", goerr.V("uuid", doc.UUID))
	}

	created := doc.Clone()
	created.ID = r.nextID
	r.nextID++

	r.entries[created.UUID] = &documentEntry{
		doc:       created,
		embedding: slices.Clone(embedding),
	}
	return created.Clone(), nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[doc.UUID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("uuid", doc.UUID))
	}

	updated := doc.Clone()
	updated.ID = entry.doc.ID
	r.entries[doc.UUID] = &documentEntry{
		doc:       updated,
		embedding: slices.Clone(embedding),
	}
	return updated.Clone(), nil
}

func (r *documentRepository) Delete(ctx context.Context, uuid model.DocumentUUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[uuid]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("uuid", uuid))
	}

	delete(r.entries, uuid)
	return nil
}

func (r *documentRepository) Get(ctx context.Context, uuid model.DocumentUUID) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[uuid]
	if !exists {
		return nil, nil
	}
	return entry.doc.Clone(), nil
}

func (r *documentRepository) GetMany(ctx context.Context, uuids []model.DocumentUUID) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Document, 0, len(uuids))
	for _, uuid := range uuids {
		if entry, exists := r.entries[uuid]; exists {
			result = append(result, entry.doc.Clone())
		}
	}
	return result, nil
}

func (r *documentRepository) ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.DocumentUUID, 0, len(r.entries))
	for uuid := range r.entries {
		result = append(result, uuid)
	}
	slices.Sort(result)
	return result, nil
}

func (r *documentRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	if limit <= 0 {
		return []*model.SearchResult{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*model.SearchResult
	for _, entry := range r.entries {
		if len(entry.embedding) == 0 {
			continue
		}
		candidates = append(candidates, &model.SearchResult{
			Document: entry.doc.Clone(),
			Score:    model.CosineSimilarity(embedding, entry.embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].Document.ID < candidates[j].Document.ID
		}
		return candidates[i].Score > candidates[j].Score
	})

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (r *documentRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}
