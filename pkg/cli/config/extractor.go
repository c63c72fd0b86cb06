package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/notelens/pkg/service/extractor"
	"github.com/urfave/cli/v3"
)

// Extractor holds CLI flags for the Notes extraction tool
type Extractor struct {
	rubyPath    string
	scriptPath  string
	sourcePath  string
	tempDir     string
	timeout     time.Duration
	maxAttempts int
}

// Flags returns CLI flags for extractor configuration
func (x *Extractor) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ruby-path",
			Usage:       "Ruby interpreter used to run the parser",
			Value:       "ruby",
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_RUBY_PATH"),
			Destination: &x.rubyPath,
		},
		&cli.StringFlag{
			Name:        "parser-script",
			Usage:       "Path of apple_cloud_notes_parser's notes_cloud_ripper.rb",
			Value:       DefaultParserScript(),
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_PARSER_SCRIPT"),
			Destination: &x.scriptPath,
		},
		&cli.StringFlag{
			Name:        "notes-db",
			Usage:       "Path of the Apple Notes database",
			Value:       DefaultNotesDB(),
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_NOTES_DB"),
			Destination: &x.sourcePath,
		},
		&cli.StringFlag{
			Name:        "temp-dir",
			Usage:       "Directory for extraction workspaces",
			Value:       DefaultTempDir(),
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_TEMP_DIR"),
			Destination: &x.tempDir,
		},
		&cli.DurationFlag{
			Name:        "parser-timeout",
			Usage:       "Time limit of one parser run",
			Value:       extractor.DefaultTimeout,
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_PARSER_TIMEOUT"),
			Destination: &x.timeout,
		},
		&cli.IntFlag{
			Name:        "parser-attempts",
			Usage:       "Number of parser runs before giving up",
			Value:       extractor.DefaultMaxAttempts,
			Category:    "Extractor",
			Sources:     cli.EnvVars("NOTELENS_PARSER_ATTEMPTS"),
			Destination: &x.maxAttempts,
		},
	}
}

// LogAttrs returns log attributes for the extractor configuration
func (x *Extractor) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("ruby", x.rubyPath),
		slog.String("script", x.scriptPath),
		slog.String("source", x.sourcePath),
		slog.Duration("timeout", x.timeout),
		slog.Int("attempts", x.maxAttempts),
	}
}

// SourcePath returns the Notes database location
func (x *Extractor) SourcePath() string {
	return x.sourcePath
}

func (x *Extractor) applyFile(c flagSetter, f *ExtractorFile) error {
	setString(c, "ruby-path", &x.rubyPath, f.Ruby)
	setString(c, "parser-script", &x.scriptPath, f.Script)
	setString(c, "notes-db", &x.sourcePath, f.Source)
	setString(c, "temp-dir", &x.tempDir, f.TempDir)
	setInt(c, "parser-attempts", &x.maxAttempts, f.MaxAttempts)
	return setDuration(c, "parser-timeout", &x.timeout, f.Timeout)
}

// Configure creates the extraction adapter
func (x *Extractor) Configure() *extractor.Extractor {
	return extractor.New(x.rubyPath, x.scriptPath, x.sourcePath,
		extractor.WithTimeout(x.timeout),
		extractor.WithMaxAttempts(x.maxAttempts),
		extractor.WithTempDir(x.tempDir),
	)
}
