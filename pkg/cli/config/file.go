package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// FileConfig is the optional TOML configuration file. Values act as
// defaults: a flag or environment variable always wins.
type FileConfig struct {
	Storage   StorageFile   `toml:"storage"`
	Embedding EmbeddingFile `toml:"embedding"`
	Extractor ExtractorFile `toml:"extractor"`
	Watcher   WatcherFile   `toml:"watcher"`
	Server    ServerFile    `toml:"server"`
}

type StorageFile struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Index   string `toml:"index"`
}

type EmbeddingFile struct {
	Provider       string `toml:"provider"`
	GeminiProject  string `toml:"gemini_project"`
	GeminiLocation string `toml:"gemini_location"`
	Dimension      int    `toml:"dimension"`
}

type ExtractorFile struct {
	Ruby        string `toml:"ruby"`
	Script      string `toml:"script"`
	Source      string `toml:"source"`
	TempDir     string `toml:"temp_dir"`
	Timeout     string `toml:"timeout"`
	MaxAttempts int    `toml:"max_attempts"`
}

type WatcherFile struct {
	Cooldown string `toml:"cooldown"`
	Pattern  string `toml:"pattern"`
}

type ServerFile struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	PingInterval   string   `toml:"ping_interval"`
}

// Validate checks the values that can be checked without other settings
func (f *FileConfig) Validate() error {
	switch f.Storage.Backend {
	case "", BackendSQLite, BackendMemory:
	default:
		return goerr.Wrap(ErrInvalidBackend, "invalid storage section",
			goerr.V(SectionKey, "storage"), goerr.V("backend", f.Storage.Backend))
	}

	switch f.Embedding.Provider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return goerr.Wrap(ErrInvalidProvider, "invalid embedding section",
			goerr.V(SectionKey, "embedding"), goerr.V("provider", f.Embedding.Provider))
	}
	if f.Embedding.Dimension < 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding dimension must be positive",
			goerr.V(SectionKey, "embedding"), goerr.V("dimension", f.Embedding.Dimension))
	}

	if f.Extractor.MaxAttempts < 0 {
		return goerr.Wrap(ErrInvalidAttemptCount, "invalid extractor section",
			goerr.V(SectionKey, "extractor"), goerr.V("max_attempts", f.Extractor.MaxAttempts))
	}

	durations := []struct {
		section, field, value string
	}{
		{"extractor", "timeout", f.Extractor.Timeout},
		{"watcher", "cooldown", f.Watcher.Cooldown},
		{"server", "ping_interval", f.Server.PingInterval},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.value); err != nil {
			return goerr.Wrap(err, "invalid duration in config file",
				goerr.V(SectionKey, d.section), goerr.V(FieldKey, d.field))
		}
	}

	return nil
}

// LoadFile reads and validates a configuration file
func LoadFile(path string) (*FileConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "failed to read config file", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var cfg FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &cfg, nil
}

// File holds the --config flag
type File struct {
	path string
}

// Flags returns CLI flags for the configuration file
func (f *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path of a TOML configuration file",
			Sources:     cli.EnvVars("NOTELENS_CONFIG"),
			Destination: &f.path,
		},
	}
}

// Path returns the configured file path
func (f *File) Path() string {
	return f.path
}

// Load returns the file contents, or nil when no file is configured
func (f *File) Load() (*FileConfig, error) {
	if f.path == "" {
		return nil, nil
	}
	return LoadFile(f.path)
}

// Groups are the flag groups a configuration file can fill in. A nil group
// is skipped.
type Groups struct {
	Storage   *Storage
	Embedding *Embedding
	Extractor *Extractor
	Watcher   *Watcher
	Server    *Server
}

// Apply copies file values into every group whose flag was not set
func (g Groups) Apply(c flagSetter, fc *FileConfig) error {
	if fc == nil {
		return nil
	}
	if g.Storage != nil {
		g.Storage.applyFile(c, &fc.Storage)
	}
	if g.Embedding != nil {
		g.Embedding.applyFile(c, &fc.Embedding)
	}
	if g.Extractor != nil {
		if err := g.Extractor.applyFile(c, &fc.Extractor); err != nil {
			return err
		}
	}
	if g.Watcher != nil {
		if err := g.Watcher.applyFile(c, &fc.Watcher); err != nil {
			return err
		}
	}
	if g.Server != nil {
		if err := g.Server.applyFile(c, &fc.Server); err != nil {
			return err
		}
	}
	return nil
}

// flagSetter reports whether a flag was given on the command line or through
// its environment variable
type flagSetter interface {
	IsSet(name string) bool
}

func setString(c flagSetter, name string, dst *string, v string) {
	if v == "" || c.IsSet(name) {
		return
	}
	*dst = v
}

func setInt(c flagSetter, name string, dst *int, v int) {
	if v == 0 || c.IsSet(name) {
		return
	}
	*dst = v
}

func setDuration(c flagSetter, name string, dst *time.Duration, v string) error {
	if v == "" || c.IsSet(name) {
		return nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return goerr.Wrap(err, "invalid duration in config file", goerr.V(FieldKey, name))
	}
	*dst = d
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidDuration, err.Error(), goerr.V("value", v))
	}
	if d <= 0 {
		return 0, goerr.Wrap(ErrInvalidDuration, "duration must be positive", goerr.V("value", v))
	}
	return d, nil
}
