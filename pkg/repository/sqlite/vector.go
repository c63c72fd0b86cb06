package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scoredRow struct {
	id    int64
	score float64
}

// vectorIndex stores one embedding per note row and answers nearest
// neighbour queries. put replaces any existing vector for the row.
type vectorIndex interface {
	schema(dimension int) string
	put(ctx context.Context, tx execer, id int64, embedding []float32) error
	remove(ctx context.Context, tx execer, id int64) error
	nearest(ctx context.Context, q execer, embedding []float32, limit int) ([]scoredRow, error)
}

type vecIndex struct{}

func (x *vecIndex) schema(dimension int) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS note_embeddings USING vec0(
    embedding float[%d] distance_metric=cosine
)`, dimension)
}

func (x *vecIndex) put(ctx context.Context, tx execer, id int64, embedding []float32) error {
	blob, err := vec.SerializeFloat32(embedding)
	if err != nil {
		return goerr.Wrap(err, "failed to serialize embedding", goerr.V("id", id))
	}
	// vec0 tables do not support upsert
	if err := x.remove(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO note_embeddings (rowid, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return goerr.Wrap(err, "failed to insert embedding", goerr.V("id", id))
	}
	return nil
}

func (x *vecIndex) remove(ctx context.Context, tx execer, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_embeddings WHERE rowid = ?`, id); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("id", id))
	}
	return nil
}

func (x *vecIndex) nearest(ctx context.Context, q execer, embedding []float32, limit int) ([]scoredRow, error) {
	blob, err := vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to serialize query embedding")
	}

	rows, err := q.QueryContext(ctx, `
		SELECT rowid, distance FROM note_embeddings
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, blob, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings", goerr.V("limit", limit))
	}
	defer rows.Close()

	var result []scoredRow
	for rows.Next() {
		var row scoredRow
		var distance float64
		if err := rows.Scan(&row.id, &distance); err != nil {
			return nil, goerr.Wrap(err, "failed to scan embedding row")
		}
		row.score = 1 - distance
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate embedding rows")
	}
	return result, nil
}

type scanIndex struct{}

func (x *scanIndex) schema(dimension int) string {
	return `CREATE TABLE IF NOT EXISTS note_vectors (
    note_id INTEGER PRIMARY KEY,
    vector BLOB NOT NULL
)`
}

func (x *scanIndex) put(ctx context.Context, tx execer, id int64, embedding []float32) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO note_vectors (note_id, vector) VALUES (?, ?)
		 ON CONFLICT(note_id) DO UPDATE SET vector = excluded.vector`,
		id, serializeVector(embedding)); err != nil {
		return goerr.Wrap(err, "failed to store embedding", goerr.V("id", id))
	}
	return nil
}

func (x *scanIndex) remove(ctx context.Context, tx execer, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_vectors WHERE note_id = ?`, id); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("id", id))
	}
	return nil
}

func (x *scanIndex) nearest(ctx context.Context, q execer, embedding []float32, limit int) ([]scoredRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT note_id, vector FROM note_vectors`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings")
	}
	defer rows.Close()

	var result []scoredRow
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, goerr.Wrap(err, "failed to scan embedding row")
		}
		result = append(result, scoredRow{
			id:    id,
			score: model.CosineSimilarity(embedding, deserializeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate embedding rows")
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].score == result[j].score {
			return result[i].id < result[j].id
		}
		return result[i].score > result[j].score
	})
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}
