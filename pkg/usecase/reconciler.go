package usecase

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

// ItemProgress describes one processed work item of a reconciliation pass.
// A pass opens with a zero Processed value that only announces Total.
type ItemProgress struct {
	// Processed counts finished items including this one
	Processed int
	// Total is the number of work items: current documents plus deletions
	Total int
	// Current is the title of the note, or its uuid for deletions
	Current  string
	Deleting bool
	Stats    model.Stats
}

// ItemFunc is called once before the first work item and after every
// processed one
type ItemFunc func(ctx context.Context, p ItemProgress)

// Reconciler applies an extracted tree to the storage gateway
type Reconciler struct {
	storage interfaces.StorageGateway
	stats   *model.StatsCounter
}

// NewReconciler creates a reconciler over storage
func NewReconciler(storage interfaces.StorageGateway) *Reconciler {
	return &Reconciler{
		storage: storage,
		stats:   model.NewStatsCounter(),
	}
}

type partition struct {
	current map[model.DocumentUUID]*model.RawNote
	trashed map[model.DocumentUUID]struct{}
}

// Reconcile diffs tree against the persisted documents and applies creates,
// updates and deletes. Per-document failures are counted in Errors and do not
// stop the pass. onItem may be nil.
func (r *Reconciler) Reconcile(ctx context.Context, tree *model.DocumentTree, onItem ItemFunc) (model.Stats, error) {
	logger := logging.From(ctx)
	r.stats.Reset()

	if tree == nil {
		return r.stats.Snapshot(), goerr.Wrap(ErrEmptyExtraction, "no tree to reconcile")
	}
	r.stats.SetTotal(len(tree.Notes))

	parts := r.partition(ctx, tree)

	persisted, err := r.storage.ListUUIDs(ctx)
	if err != nil {
		return r.stats.Snapshot(), goerr.Wrap(err, "failed to list persisted documents")
	}
	existing := make(map[model.DocumentUUID]struct{}, len(persisted))
	for _, uuid := range persisted {
		existing[uuid] = struct{}{}
	}

	var toDelete []model.DocumentUUID
	for _, uuid := range persisted {
		if _, ok := parts.current[uuid]; ok {
			continue
		}
		if _, ok := parts.trashed[uuid]; ok {
			continue
		}
		toDelete = append(toDelete, uuid)
	}

	total := len(parts.current) + len(toDelete)
	processed := 0
	emit := func(current string, deleting bool) {
		processed++
		if onItem != nil {
			onItem(ctx, ItemProgress{
				Processed: processed,
				Total:     total,
				Current:   current,
				Deleting:  deleting,
				Stats:     r.stats.Snapshot(),
			})
		}
	}

	logger.Info("Reconciling notes",
		slog.Int("incoming", len(parts.current)),
		slog.Int("persisted", len(persisted)),
		slog.Int("to_delete", len(toDelete)),
	)
	if onItem != nil {
		onItem(ctx, ItemProgress{Total: total, Stats: r.stats.Snapshot()})
	}

	for _, uuid := range slices.Sorted(maps.Keys(parts.current)) {
		if err := ctx.Err(); err != nil {
			return r.stats.Snapshot(), goerr.Wrap(err, "reconciliation cancelled")
		}

		note := parts.current[uuid]
		_, known := existing[uuid]
		category, err := r.apply(ctx, note, known)
		if err != nil {
			logger.Warn("Failed to reconcile note",
				slog.String(UUIDKey, string(uuid)),
				slog.Any("error", err),
			)
			category = types.StatErrors
		}
		r.stats.Increment(category, 1)
		emit(note.Title, false)
	}

	for _, uuid := range toDelete {
		if err := ctx.Err(); err != nil {
			return r.stats.Snapshot(), goerr.Wrap(err, "reconciliation cancelled")
		}

		if err := r.storage.Delete(ctx, uuid); err != nil {
			logger.Warn("Failed to delete note", slog.String(UUIDKey, string(uuid)), slog.Any("error", err))
			r.stats.Increment(types.StatErrors, 1)
		} else {
			r.stats.Increment(types.StatDeleted, 1)
		}
		emit(string(uuid), true)
	}

	stats := r.stats.Snapshot()
	logger.Info("Reconciliation finished",
		slog.Int("total", stats.Total),
		slog.Int("new", stats.New),
		slog.Int("modified", stats.Modified),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("deleted", stats.Deleted),
		slog.Int("in_trash", stats.InTrash),
		slog.Int("errors", stats.Errors),
	)
	return stats, nil
}

// partition splits the tree into the current set and the trashed uuids.
// Undecodable entries count as errors; entries without uuid are skipped.
func (r *Reconciler) partition(ctx context.Context, tree *model.DocumentTree) partition {
	logger := logging.From(ctx)

	trashID, hasTrash := tree.TrashFolderID()
	if hasTrash {
		logger.Info("Found trash folder", slog.String("folder_id", trashID))
	} else {
		logger.Warn("Could not find Recently Deleted folder, trash filtering is skipped")
	}

	parts := partition{
		current: make(map[model.DocumentUUID]*model.RawNote, len(tree.Notes)),
		trashed: make(map[model.DocumentUUID]struct{}),
	}

	for key, raw := range tree.Notes {
		note, err := model.DecodeRawNote(raw)
		if err != nil {
			logger.Warn("Failed to decode note", slog.String("note_key", key), slog.Any("error", err))
			r.stats.Increment(types.StatErrors, 1)
			continue
		}

		if hasTrash && note.FolderID() == trashID {
			r.stats.Increment(types.StatInTrash, 1)
			if note.UUID != "" {
				parts.trashed[model.DocumentUUID(note.UUID)] = struct{}{}
			}
			continue
		}

		if note.UUID == "" {
			logger.Warn("Skipping note without uuid", slog.String("note_key", key), slog.String("title", note.Title))
			continue
		}
		parts.current[model.DocumentUUID(note.UUID)] = note
	}

	return parts
}

func (r *Reconciler) apply(ctx context.Context, note *model.RawNote, known bool) (types.StatCategory, error) {
	doc, err := note.ToDocument()
	if err != nil {
		return "", err
	}

	if !known {
		if _, err := r.storage.Create(ctx, doc); err != nil {
			return "", err
		}
		return types.StatNew, nil
	}

	stored, err := r.storage.Get(ctx, doc.UUID)
	if err != nil {
		return "", err
	}
	if stored == nil {
		// removed since the uuid listing
		if _, err := r.storage.Create(ctx, doc); err != nil {
			return "", err
		}
		return types.StatNew, nil
	}

	if !doc.IsNewerThan(stored) {
		return types.StatUnchanged, nil
	}
	if err := r.storage.Update(ctx, doc); err != nil {
		return "", err
	}
	return types.StatModified, nil
}
