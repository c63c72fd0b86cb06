package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/repository/memory"
	"github.com/secmon-lab/notelens/pkg/repository/sqlite"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Storage holds CLI flags for the document store
type Storage struct {
	backend string
	path    string
	index   string
}

// Flags returns CLI flags for storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Storage backend type (sqlite or memory)",
			Value:       BackendSQLite,
			Category:    "Storage",
			Sources:     cli.EnvVars("NOTELENS_STORAGE_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "Path of the vector database file",
			Value:       DefaultDBPath(),
			Category:    "Storage",
			Sources:     cli.EnvVars("NOTELENS_DB_PATH"),
			Destination: &s.path,
		},
		&cli.StringFlag{
			Name:        "vector-index",
			Usage:       "Vector index implementation (vec: sqlite-vec KNN, scan: BLOB scan)",
			Value:       string(sqlite.IndexVec),
			Category:    "Storage",
			Sources:     cli.EnvVars("NOTELENS_VECTOR_INDEX"),
			Destination: &s.index,
		},
	}
}

// LogAttrs returns log attributes for the storage configuration
func (s *Storage) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", s.backend),
		slog.String("path", s.path),
		slog.String("index", s.index),
	}
}

func (s *Storage) applyFile(c flagSetter, f *StorageFile) {
	setString(c, "storage-backend", &s.backend, f.Backend)
	setString(c, "db-path", &s.path, f.Path)
	setString(c, "vector-index", &s.index, f.Index)
}

// Configure opens the repository for embeddings of the given dimension. The
// caller is responsible for calling Close() on the returned repository.
func (s *Storage) Configure(ctx context.Context, dimension int) (interfaces.Repository, error) {
	switch s.backend {
	case BackendSQLite:
		index, err := sqlite.ParseIndex(s.index)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure storage")
		}
		repo, err := sqlite.New(ctx, s.path,
			sqlite.WithIndex(index),
			sqlite.WithDimension(dimension),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite repository", goerr.V("path", s.path))
		}
		logging.From(ctx).Info("Using SQLite repository",
			"path", s.path,
			"index", index,
			"dimension", dimension,
		)
		return repo, nil

	case BackendMemory:
		logging.From(ctx).Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "failed to configure storage", goerr.V("backend", s.backend))
	}
}
