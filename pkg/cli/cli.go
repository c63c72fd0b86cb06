package cli

import (
	"context"
	"time"

	"github.com/secmon-lab/notelens/pkg/cli/config"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var fileCfg config.File
	var closer func()

	flags := loggerCfg.Flags()
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, fileCfg.Flags()...)

	app := &cli.Command{
		Name:    "notelens",
		Usage:   "Semantic search service for Apple Notes",
		Version: version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			if err := sentryCfg.Configure(version); err != nil {
				return ctx, err
			}

			logging.Default().Info("Starting notelens",
				"version", version,
				"logger", loggerCfg,
				"sentry", sentryCfg,
				"config", fileCfg.Path(),
			)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			errutil.Flush(2 * time.Second)
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(&fileCfg),
			cmdSync(&fileCfg),
			cmdSearch(),
			cmdCheck(&fileCfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

// loadFile applies the configuration file, if any, to groups
func loadFile(c *cli.Command, file *config.File, groups config.Groups) error {
	fc, err := file.Load()
	if err != nil {
		return err
	}
	return groups.Apply(c, fc)
}
