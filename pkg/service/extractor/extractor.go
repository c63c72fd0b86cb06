package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/secmon-lab/notelens/pkg/utils/safe"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3

	outputFile = "notes_rip/json/all_notes_1.json"

	// stderrLimit bounds how much parser output is attached to errors
	stderrLimit = 2048
)

// MinRubyVersion is the oldest ruby the parser supports
var MinRubyVersion = [3]int{3, 0, 0}

// Extractor runs apple_cloud_notes_parser through bundler and decodes its
// JSON output into a DocumentTree
type Extractor struct {
	rubyPath    string
	scriptPath  string
	sourcePath  string
	tempDir     string
	timeout     time.Duration
	maxAttempts int
}

var _ interfaces.Extractor = &Extractor{}

// Option is a functional option for Extractor configuration
type Option func(*Extractor)

// WithTimeout bounds a single parser run
func WithTimeout(d time.Duration) Option {
	return func(x *Extractor) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a failed run is attempted in total
func WithMaxAttempts(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.maxAttempts = n
		}
	}
}

// WithTempDir sets the parent directory of per-attempt workspaces
func WithTempDir(dir string) Option {
	return func(x *Extractor) {
		x.tempDir = dir
	}
}

// New creates an extractor. sourcePath is the NoteStore.sqlite file.
func New(rubyPath, scriptPath, sourcePath string, opts ...Option) *Extractor {
	x := &Extractor{
		rubyPath:    rubyPath,
		scriptPath:  scriptPath,
		sourcePath:  sourcePath,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// SourcePath returns the configured Notes database path
func (x *Extractor) SourcePath() string {
	return x.sourcePath
}

func (x *Extractor) parserDir() string {
	return filepath.Dir(x.scriptPath)
}

func (x *Extractor) environ() []string {
	dir := x.parserDir()
	return append(os.Environ(),
		"BUNDLE_PATH="+filepath.Join(dir, "vendor", "bundle"),
		"GEM_PATH="+filepath.Join(dir, "vendor", "bundle", "ruby"),
	)
}

// Verify checks that the parser can be run against the source database
func (x *Extractor) Verify(ctx context.Context) error {
	if _, err := os.Stat(x.scriptPath); err != nil {
		return goerr.Wrap(ErrNotFound, "parser script is not available",
			goerr.V("script", x.scriptPath),
			goerr.V("cause", err.Error()),
		)
	}

	version, err := x.rubyVersion(ctx)
	if err != nil {
		return err
	}
	if compareVersion(version, MinRubyVersion) < 0 {
		return goerr.Wrap(ErrEnv, "ruby is older than required",
			goerr.V("version", formatVersion(version)),
			goerr.V("required", formatVersion(MinRubyVersion)),
		)
	}

	if err := x.checkSource(x.sourcePath); err != nil {
		return err
	}
	return nil
}

func (x *Extractor) rubyVersion(ctx context.Context) ([3]int, error) {
	cmd := exec.CommandContext(ctx, x.rubyPath, "--version")
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return [3]int{}, goerr.Wrap(ErrNotFound, "ruby is not installed", goerr.V("ruby", x.rubyPath))
		}
		return [3]int{}, goerr.Wrap(ErrEnv, "failed to get ruby version",
			goerr.V("ruby", x.rubyPath),
			goerr.V("cause", err.Error()),
		)
	}

	version, err := parseRubyVersion(string(out))
	if err != nil {
		return [3]int{}, goerr.Wrap(ErrEnv, "failed to parse ruby version", goerr.V("output", string(out)))
	}
	return version, nil
}

func (x *Extractor) checkSource(sourcePath string) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return goerr.Wrap(ErrSourceUnavailable, "notes database is not accessible",
			goerr.V("path", sourcePath),
			goerr.V("cause", err.Error()),
		)
	}
	return nil
}

// Extract runs the parser, retrying execution and output failures, and
// returns the decoded tree
func (x *Extractor) Extract(ctx context.Context, sourcePath string, progress interfaces.ProgressFunc) (*model.DocumentTree, error) {
	if sourcePath == "" {
		sourcePath = x.sourcePath
	}
	if _, err := os.Stat(x.scriptPath); err != nil {
		return nil, goerr.Wrap(ErrNotFound, "parser script is not available",
			goerr.V("script", x.scriptPath),
			goerr.V("cause", err.Error()),
		)
	}
	if err := x.checkSource(sourcePath); err != nil {
		return nil, err
	}

	report := func(fraction float64, msg string) {
		if progress != nil {
			progress(fraction, msg)
		}
	}

	logger := logging.From(ctx).With(slog.String("source", sourcePath))
	logger.Info("Starting note extraction", slog.Int("max_attempts", x.maxAttempts))
	report(0, "Starting extraction")

	var lastErr error
	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		report(float64(attempt-1)/float64(x.maxAttempts), "Running parser attempt "+strconv.Itoa(attempt))

		tree, err := x.attempt(ctx, sourcePath)
		if err == nil {
			logger.Info("Note extraction completed",
				slog.Int("attempt", attempt),
				slog.Int("notes", len(tree.Notes)),
				slog.Int("folders", len(tree.Folders)),
			)
			report(1, "Extraction complete")
			return tree, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "extraction cancelled", goerr.V("attempt", attempt))
		}
		if !isRetryable(err) {
			return nil, err
		}
		logger.Warn("Parser attempt failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}

	return nil, goerr.Wrap(lastErr, "extraction failed after retries", goerr.V("attempts", x.maxAttempts))
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrExec) || errors.Is(err, ErrOutput)
}

func (x *Extractor) attempt(ctx context.Context, sourcePath string) (*model.DocumentTree, error) {
	workspace, err := os.MkdirTemp(x.tempDir, "notelens-extract-*")
	if err != nil {
		return nil, goerr.Wrap(ErrEnv, "failed to create workspace",
			goerr.V("temp_dir", x.tempDir),
			goerr.V("cause", err.Error()),
		)
	}
	defer safe.RemoveAll(ctx, workspace)

	if err := x.run(ctx, sourcePath, workspace); err != nil {
		return nil, err
	}
	return readOutput(filepath.Join(workspace, outputFile))
}

func (x *Extractor) run(ctx context.Context, sourcePath, workspace string) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, x.rubyPath,
		"-S", "bundle", "exec", "ruby", filepath.Base(x.scriptPath),
		"-m", filepath.Dir(sourcePath),
		"-g",
		"-o", workspace,
	)
	cmd.Dir = x.parserDir()
	cmd.Env = x.environ()
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.From(ctx).Debug("Executing parser",
		slog.String("ruby", x.rubyPath),
		slog.String("script", x.scriptPath),
		slog.String("workspace", workspace),
	)

	err := cmd.Run()
	switch {
	case err == nil:
		logging.From(ctx).Debug("Parser finished", slog.Int("stdout_bytes", stdout.Len()))
		return nil
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return goerr.Wrap(ErrNotFound, "ruby is not installed", goerr.V("ruby", x.rubyPath))
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return goerr.Wrap(ErrExec, "parser timed out", goerr.V("timeout", x.timeout.String()))
	default:
		return goerr.Wrap(ErrExec, "parser exited abnormally",
			goerr.V("cause", err.Error()),
			goerr.V("stderr", truncate(stderr.String(), stderrLimit)),
		)
	}
}

func readOutput(path string) (*model.DocumentTree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(ErrOutput, "parser output file not found",
			goerr.V("path", path),
			goerr.V("cause", err.Error()),
		)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(ErrOutput, "parser output is not JSON", goerr.V("cause", err.Error()))
	}

	sch, err := outputSchema()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile output schema")
	}
	if err := sch.Validate(inst); err != nil {
		return nil, goerr.Wrap(ErrOutput, "parser output has unexpected structure", goerr.V("cause", err.Error()))
	}

	var tree model.DocumentTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, goerr.Wrap(ErrOutput, "failed to decode parser output", goerr.V("cause", err.Error()))
	}
	return &tree, nil
}

// parseRubyVersion reads the version from `ruby --version` output such as
// "ruby 3.2.2 (2023-03-30 revision e51014f9c0) [arm64-darwin22]"
func parseRubyVersion(out string) ([3]int, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return [3]int{}, goerr.New("unexpected ruby version output", goerr.V("output", out))
	}

	var version [3]int
	parts := strings.SplitN(fields[1], ".", 3)
	for i, part := range parts {
		// patch levels look like "10p210"
		digits := part
		if idx := strings.IndexFunc(part, func(r rune) bool { return r < '0' || r > '9' }); idx >= 0 {
			digits = part[:idx]
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return [3]int{}, goerr.Wrap(err, "invalid ruby version", goerr.V("version", fields[1]))
		}
		version[i] = n
	}
	return version, nil
}

func compareVersion(a, b [3]int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func formatVersion(v [3]int) string {
	return strconv.Itoa(v[0]) + "." + strconv.Itoa(v[1]) + "." + strconv.Itoa(v[2])
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
