package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/cli/config"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notelens.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "memory"
path = "/tmp/notelens.db"
index = "scan"

[embedding]
provider = "gemini"
gemini_project = "my-project"
dimension = 768

[extractor]
ruby = "/opt/homebrew/bin/ruby"
timeout = "2m"
max_attempts = 5

[watcher]
cooldown = "500ms"
pattern = "*.sqlite-wal"

[server]
addr = "127.0.0.1:9000"
allowed_origins = ["localhost:*"]
ping_interval = "15s"
`)

	cfg, err := config.LoadFile(path)
	gt.NoError(t, err).Required()
	gt.Value(t, cfg.Storage.Backend).Equal("memory")
	gt.Value(t, cfg.Storage.Index).Equal("scan")
	gt.Value(t, cfg.Embedding.Provider).Equal("gemini")
	gt.Number(t, cfg.Embedding.Dimension).Equal(768)
	gt.Value(t, cfg.Extractor.Timeout).Equal("2m")
	gt.Number(t, cfg.Extractor.MaxAttempts).Equal(5)
	gt.Value(t, cfg.Watcher.Pattern).Equal("*.sqlite-wal")
	gt.Array(t, cfg.Server.AllowedOrigins).Equal([]string{"localhost:*"})
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "unknown backend",
			content: "[storage]\nbackend = \"postgres\"\n",
			wantErr: config.ErrInvalidBackend,
		},
		{
			name:    "unknown provider",
			content: "[embedding]\nprovider = \"claude\"\n",
			wantErr: config.ErrInvalidProvider,
		},
		{
			name:    "negative attempts",
			content: "[extractor]\nmax_attempts = -1\n",
			wantErr: config.ErrInvalidAttemptCount,
		},
		{
			name:    "malformed duration",
			content: "[watcher]\ncooldown = \"soon\"\n",
			wantErr: config.ErrInvalidDuration,
		},
		{
			name:    "non positive duration",
			content: "[server]\nping_interval = \"0s\"\n",
			wantErr: config.ErrInvalidDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFile(writeConfig(t, tt.content))
			gt.Error(t, err).Is(tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("broken TOML", func(t *testing.T) {
		_, err := config.LoadFile(writeConfig(t, "[storage\n"))
		gt.Value(t, err).NotNil()
	})
}

func TestFile_LoadWithoutPath(t *testing.T) {
	var f config.File
	cfg, err := f.Load()
	gt.NoError(t, err)
	gt.Value(t, cfg).Nil()
}

func TestApply(t *testing.T) {
	fc := &config.FileConfig{
		Storage:   config.StorageFile{Backend: "memory", Path: "/data/notes.db"},
		Extractor: config.ExtractorFile{Ruby: "/usr/local/bin/ruby", Timeout: "90s", MaxAttempts: 4},
		Watcher:   config.WatcherFile{Cooldown: "1s"},
		Server:    config.ServerFile{Addr: "127.0.0.1:9999", AllowedOrigins: []string{"example.com"}},
	}

	t.Run("file fills unset flags", func(t *testing.T) {
		storage := config.NewStorageForTest("sqlite", "/default.db", "vec")
		var extractor config.Extractor
		var watcher config.Watcher
		var server config.Server

		err := config.ApplyForTest(config.Groups{
			Storage:   storage,
			Extractor: &extractor,
			Watcher:   &watcher,
			Server:    &server,
		}, fc)
		gt.NoError(t, err).Required()

		backend, path, index := storage.Values()
		gt.Value(t, backend).Equal("memory")
		gt.Value(t, path).Equal("/data/notes.db")
		gt.Value(t, index).Equal("vec")

		ruby, _, _, timeout, attempts := extractor.Values()
		gt.Value(t, ruby).Equal("/usr/local/bin/ruby")
		gt.Value(t, timeout).Equal(90 * time.Second)
		gt.Number(t, attempts).Equal(4)

		cooldown, _ := watcher.Values()
		gt.Value(t, cooldown).Equal(time.Second)

		addr, origins, _ := server.Values()
		gt.Value(t, addr).Equal("127.0.0.1:9999")
		gt.Array(t, origins).Equal([]string{"example.com"})
	})

	t.Run("explicit flags win", func(t *testing.T) {
		storage := config.NewStorageForTest("sqlite", "/flag.db", "vec")
		err := config.ApplyForTest(config.Groups{Storage: storage}, fc, "storage-backend", "db-path")
		gt.NoError(t, err).Required()

		backend, path, _ := storage.Values()
		gt.Value(t, backend).Equal("sqlite")
		gt.Value(t, path).Equal("/flag.db")
	})

	t.Run("nil file is a no-op", func(t *testing.T) {
		storage := config.NewStorageForTest("sqlite", "/flag.db", "vec")
		gt.NoError(t, config.ApplyForTest(config.Groups{Storage: storage}, nil))
		backend, _, _ := storage.Values()
		gt.Value(t, backend).Equal("sqlite")
	})
}

func TestStorage_Configure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewStorageForTest("memory", "", "").Configure(ctx, 8)
		gt.NoError(t, err).Required()
		defer func() { gt.NoError(t, repo.Close()) }()
		gt.NoError(t, repo.Ping(ctx))
	})

	t.Run("sqlite with scan index", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "notelens.db")
		repo, err := config.NewStorageForTest("sqlite", path, "scan").Configure(ctx, 8)
		gt.NoError(t, err).Required()
		defer func() { gt.NoError(t, repo.Close()) }()
		gt.NoError(t, repo.Ping(ctx))

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewStorageForTest("postgres", "", "").Configure(ctx, 8)
		gt.Error(t, err).Is(config.ErrInvalidBackend)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := config.NewStorageForTest("sqlite", filepath.Join(t.TempDir(), "x.db"), "hnsw").Configure(ctx, 8)
		gt.Value(t, err).NotNil()
	})
}

func TestEmbedding_Client(t *testing.T) {
	ctx := context.Background()

	t.Run("openai without key", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest("openai", "", "", 1536).Client(ctx)
		gt.Error(t, err).Is(config.ErrMissingAPIKey)
	})

	t.Run("gemini without project", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest("gemini", "", "", 768).Client(ctx)
		gt.Error(t, err).Is(config.ErrMissingProjectID)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest("bedrock", "key", "", 768).Client(ctx)
		gt.Error(t, err).Is(config.ErrInvalidProvider)
	})
}

func TestLogger_Configure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notelens.log")
		closer, err := config.NewLoggerForTest("debug", "console", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("hello from test")
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains(`"msg":"hello from test"`)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "-").Configure()
		gt.Value(t, err).NotNil()
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "-").Configure()
		gt.Value(t, err).NotNil()
	})
}
