package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

type documentRepository struct {
	db      *sql.DB
	vectors vectorIndex
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid stored timestamp", goerr.V("value", s))
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func noteArgs(doc *model.Document) ([]any, error) {
	objects := doc.EmbeddedObjects
	if objects == nil {
		objects = []model.EmbeddedObject{}
	}
	raw, err := json.Marshal(objects)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode embedded objects", goerr.V("uuid", doc.UUID))
	}

	return []any{
		doc.AccountKey, doc.Account, doc.FolderKey, doc.Folder, doc.NoteID, doc.PrimaryKey,
		encodeTime(doc.CreationTime), encodeTime(doc.ModifyTime),
		doc.CloudKitCreatorID, doc.CloudKitModifierID, doc.CloudKitLastModifiedDevice,
		boolToInt(doc.IsPinned), boolToInt(doc.IsPasswordProtected),
		doc.Title, doc.Plaintext, doc.HTML, string(raw),
		model.JoinTags(doc.Hashtags), model.JoinTags(doc.Mentions),
	}, nil
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc                model.Document
		uuid               string
		creation, modify   string
		pinned, protected  int
		objects            string
		hashtags, mentions string
	)

	if err := row.Scan(
		&doc.ID, &uuid, &doc.AccountKey, &doc.Account, &doc.FolderKey, &doc.Folder, &doc.NoteID, &doc.PrimaryKey,
		&creation, &modify, &doc.CloudKitCreatorID, &doc.CloudKitModifierID, &doc.CloudKitLastModifiedDevice,
		&pinned, &protected, &doc.Title, &doc.Plaintext, &doc.HTML, &objects, &hashtags, &mentions,
	); err != nil {
		return nil, err
	}

	doc.UUID = model.DocumentUUID(uuid)
	doc.IsPinned = pinned != 0
	doc.IsPasswordProtected = protected != 0
	doc.Hashtags = model.SplitTags(hashtags)
	doc.Mentions = model.SplitTags(mentions)

	var err error
	if doc.CreationTime, err = decodeTime(creation); err != nil {
		return nil, goerr.Wrap(err, "failed to decode creation_time", goerr.V("uuid", uuid))
	}
	if doc.ModifyTime, err = decodeTime(modify); err != nil {
		return nil, goerr.Wrap(err, "failed to decode modify_time", goerr.V("uuid", uuid))
	}

	if objects != "" {
		if err := json.Unmarshal([]byte(objects), &doc.EmbeddedObjects); err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedded objects", goerr.V("uuid", uuid))
		}
	}
	if len(doc.EmbeddedObjects) == 0 {
		doc.EmbeddedObjects = nil
	}

	return &doc, nil
}

// withTx runs fn inside a transaction, rolling back on error
func (r *documentRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error) {
	args, err := noteArgs(doc)
	if err != nil {
		return nil, err
	}

	created := doc.Clone()
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO notes (
			uuid, account_key, account, folder_key, folder, note_id, primary_key,
			creation_time, modify_time, cloudkit_creator_id, cloudkit_modifier_id, cloudkit_last_modified_device,
			is_pinned, is_password_protected, title, plaintext, html, embedded_objects, hashtags, mentions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append([]any{string(doc.UUID)}, args...)...)
		if err != nil {
			return goerr.Wrap(err, "failed to insert note", goerr.V("uuid", doc.UUID))
		}

		id, err := res.LastInsertId()
		if err != nil {
			return goerr.Wrap(err, "failed to get note row id", goerr.V("uuid", doc.UUID))
		}
		created.ID = id

		return r.vectors.put(ctx, tx, id, embedding)
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document, embedding []float32) (*model.Document, error) {
	args, err := noteArgs(doc)
	if err != nil {
		return nil, err
	}

	updated := doc.Clone()
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE uuid = ?`, string(doc.UUID)).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("uuid", doc.UUID))
			}
			return goerr.Wrap(err, "failed to look up note", goerr.V("uuid", doc.UUID))
		}
		updated.ID = id

		if _, err := tx.ExecContext(ctx, `UPDATE notes SET
			account_key = ?, account = ?, folder_key = ?, folder = ?, note_id = ?, primary_key = ?,
			creation_time = ?, modify_time = ?, cloudkit_creator_id = ?, cloudkit_modifier_id = ?, cloudkit_last_modified_device = ?,
			is_pinned = ?, is_password_protected = ?, title = ?, plaintext = ?, html = ?, embedded_objects = ?, hashtags = ?, mentions = ?
			WHERE id = ?`, append(args, id)...); err != nil {
			return goerr.Wrap(err, "failed to update note", goerr.V("uuid", doc.UUID))
		}

		return r.vectors.put(ctx, tx, id, embedding)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *documentRepository) Delete(ctx context.Context, uuid model.DocumentUUID) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE uuid = ?`, string(uuid)).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("uuid", uuid))
			}
			return goerr.Wrap(err, "failed to look up note", goerr.V("uuid", uuid))
		}

		if err := r.vectors.remove(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return goerr.Wrap(err, "failed to delete note", goerr.V("uuid", uuid))
		}
		return nil
	})
}

func (r *documentRepository) Get(ctx context.Context, uuid model.DocumentUUID) (*model.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE uuid = ?`, string(uuid))
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get note", goerr.V("uuid", uuid))
	}
	return doc, nil
}

// maxParams stays below SQLite's default host parameter limit
const maxParams = 500

func (r *documentRepository) GetMany(ctx context.Context, uuids []model.DocumentUUID) ([]*model.Document, error) {
	result := make([]*model.Document, 0, len(uuids))

	for start := 0; start < len(uuids); start += maxParams {
		end := min(start+maxParams, len(uuids))
		chunk := uuids[start:end]

		args := make([]any, len(chunk))
		for i, uuid := range chunk {
			args[i] = string(uuid)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		docs, err := r.queryDocuments(ctx, `SELECT `+noteColumns+` FROM notes WHERE uuid IN (`+placeholders+`) ORDER BY id`, args...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get notes", goerr.V("count", len(chunk)))
		}
		result = append(result, docs...)
	}

	return result, nil
}

func (r *documentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]*model.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query notes")
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan note")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate notes")
	}
	return docs, nil
}

func (r *documentRepository) ListUUIDs(ctx context.Context) ([]model.DocumentUUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT uuid FROM notes ORDER BY uuid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list note uuids")
	}
	defer rows.Close()

	result := []model.DocumentUUID{}
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, goerr.Wrap(err, "failed to scan note uuid")
		}
		result = append(result, model.DocumentUUID(uuid))
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate note uuids")
	}
	return result, nil
}

func (r *documentRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	if limit <= 0 {
		return []*model.SearchResult{}, nil
	}

	scored, err := r.vectors.nearest(ctx, r.db, embedding, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*model.SearchResult, 0, len(scored))
	for _, s := range scored {
		row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, s.id)
		doc, err := scanDocument(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load matched note", goerr.V("id", s.id))
		}
		results = append(results, &model.SearchResult{Document: doc, Score: s.score})
	}
	return results, nil
}

func (r *documentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count notes")
	}
	return n, nil
}
