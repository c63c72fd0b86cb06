package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/notelens/pkg/service/watcher"
	"github.com/urfave/cli/v3"
)

// Watcher holds CLI flags for the Notes database watcher
type Watcher struct {
	cooldown time.Duration
	pattern  string
}

// Flags returns CLI flags for watcher configuration
func (w *Watcher) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "watch-cooldown",
			Usage:       "Minimum interval between two change notifications",
			Value:       watcher.DefaultCooldown,
			Category:    "Watcher",
			Sources:     cli.EnvVars("NOTELENS_WATCH_COOLDOWN"),
			Destination: &w.cooldown,
		},
		&cli.StringFlag{
			Name:        "watch-pattern",
			Usage:       "Glob of file names in the Notes directory that trigger a sync",
			Value:       watcher.DefaultPattern,
			Category:    "Watcher",
			Sources:     cli.EnvVars("NOTELENS_WATCH_PATTERN"),
			Destination: &w.pattern,
		},
	}
}

// LogAttrs returns log attributes for the watcher configuration
func (w *Watcher) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Duration("cooldown", w.cooldown),
		slog.String("pattern", w.pattern),
	}
}

func (w *Watcher) applyFile(c flagSetter, f *WatcherFile) error {
	setString(c, "watch-pattern", &w.pattern, f.Pattern)
	return setDuration(c, "watch-cooldown", &w.cooldown, f.Cooldown)
}

// Configure creates a watcher for the Notes database at path
func (w *Watcher) Configure(path string, onChange watcher.ChangeFunc) (*watcher.Watcher, error) {
	wt, err := watcher.New(path, onChange,
		watcher.WithCooldown(w.cooldown),
		watcher.WithPattern(w.pattern),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure watcher")
	}
	return wt, nil
}
