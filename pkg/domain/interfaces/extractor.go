package interfaces

import (
	"context"

	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// ProgressFunc receives extraction progress. fraction is in [0, 1].
type ProgressFunc func(fraction float64, message string)

// Extractor produces a document tree from the source note store
type Extractor interface {
	// Extract runs the extraction tool on sourcePath. progress may be nil.
	Extract(ctx context.Context, sourcePath string, progress ProgressFunc) (*model.DocumentTree, error)

	// SourcePath returns the configured source note store location
	SourcePath() string
}
