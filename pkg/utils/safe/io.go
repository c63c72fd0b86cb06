package safe

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write writes data to w and logs a failure. A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err))
	}
}

// RemoveAll removes path and everything below it, logging a failure.
// An empty path is ignored.
func RemoveAll(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logging.From(ctx).Error("Failed to remove directory", slog.String("path", path), slog.Any("error", err))
	}
}
