package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "modernc.org/sqlite"
)

// Index selects how embeddings are stored and searched
type Index string

const (
	// IndexVec stores embeddings in a sqlite-vec vec0 virtual table and runs
	// KNN queries inside SQLite
	IndexVec Index = "vec"
	// IndexScan stores embeddings as BLOBs and ranks them in Go. It runs on
	// the pure Go SQLite driver without the WebAssembly build.
	IndexScan Index = "scan"
)

// ParseIndex converts a string into Index
func ParseIndex(s string) (Index, error) {
	switch Index(s) {
	case IndexVec, IndexScan:
		return Index(s), nil
	default:
		return "", goerr.New("invalid vector index", goerr.V("index", s))
	}
}

var (
	ErrDimensionMismatch = goerr.New("embedding dimension does not match the database")
	ErrInvalidDimension  = goerr.New("embedding dimension must be positive")
)

// Repository is a SQLite backed implementation of interfaces.Repository
type Repository struct {
	db        *sql.DB
	path      string
	index     Index
	dimension int
	document  *documentRepository
}

var _ interfaces.Repository = &Repository{}

// Option is a functional option for Repository configuration
type Option func(*Repository)

// WithIndex sets the vector index implementation
func WithIndex(index Index) Option {
	return func(r *Repository) {
		r.index = index
	}
}

// WithDimension sets the embedding dimension of the vector table
func WithDimension(dim int) Option {
	return func(r *Repository) {
		r.dimension = dim
	}
}

// New opens (creating if needed) the database at path and migrates its schema
func New(ctx context.Context, path string, opts ...Option) (*Repository, error) {
	r := &Repository{
		path:      path,
		index:     IndexVec,
		dimension: model.DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.dimension <= 0 {
		return nil, goerr.Wrap(ErrInvalidDimension, "failed to open database", goerr.V("dimension", r.dimension))
	}
	if _, err := ParseIndex(string(r.index)); err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open(r.driverName(), path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// The engine is driven from a single dispatch goroutine; one connection
	// also keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)
	r.db = db

	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.document = &documentRepository{db: db, vectors: r.vectorIndex()}
	return r, nil
}

func (r *Repository) driverName() string {
	if r.index == IndexScan {
		return "sqlite"
	}
	return "sqlite3"
}

func (r *Repository) vectorIndex() vectorIndex {
	if r.index == IndexScan {
		return &scanIndex{}
	}
	return &vecIndex{}
}

func (r *Repository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil && r.path != ":memory:" {
		return goerr.Wrap(err, "failed to enable WAL", goerr.V("path", r.path))
	}
	if _, err := r.db.ExecContext(ctx, baseSchema); err != nil {
		return goerr.Wrap(err, "failed to create schema", goerr.V("path", r.path))
	}

	var stored string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedding_dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES ('embedding_dimension', ?)`, strconv.Itoa(r.dimension)); err != nil {
			return goerr.Wrap(err, "failed to record embedding dimension")
		}
	case err != nil:
		return goerr.Wrap(err, "failed to read embedding dimension")
	case stored != strconv.Itoa(r.dimension):
		return goerr.Wrap(ErrDimensionMismatch, "failed to open database",
			goerr.V("stored", stored),
			goerr.V("configured", r.dimension),
		)
	}

	if _, err := r.db.ExecContext(ctx, r.vectorIndex().schema(r.dimension)); err != nil {
		return goerr.Wrap(err, "failed to create vector table", goerr.V("index", r.index))
	}
	return nil
}

func (r *Repository) Document() interfaces.DocumentRepository {
	return r.document
}

// Ping verifies the database answers queries
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return goerr.Wrap(err, "failed to ping database", goerr.V("path", r.path))
	}
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return goerr.Wrap(err, "failed to query database", goerr.V("path", r.path))
	}
	return nil
}

func (r *Repository) Close() error {
	if err := r.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database", goerr.V("path", r.path))
	}
	return nil
}
