package safe_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/utils/safe"
)

func TestRemoveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workspace")
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755)).Required()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "out.json"), []byte("{}"), 0o600)).Required()

	safe.RemoveAll(t.Context(), dir)

	_, err := os.Stat(dir)
	gt.Bool(t, os.IsNotExist(err)).True()

	// empty path is a no-op
	safe.RemoveAll(t.Context(), "")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	safe.Write(t.Context(), &buf, []byte("ok"))
	gt.Value(t, buf.String()).Equal("ok")

	safe.Write(t.Context(), nil, []byte("ignored"))
}
