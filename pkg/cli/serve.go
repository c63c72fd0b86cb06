package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/secmon-lab/notelens/pkg/cli/config"
	httpctrl "github.com/secmon-lab/notelens/pkg/controller/http"
	"github.com/secmon-lab/notelens/pkg/controller/ws"
	"github.com/secmon-lab/notelens/pkg/service/bus"
	"github.com/secmon-lab/notelens/pkg/service/storage"
	"github.com/secmon-lab/notelens/pkg/usecase"
	"github.com/secmon-lab/notelens/pkg/utils/errutil"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/secmon-lab/notelens/pkg/utils/safe"
)

const shutdownTimeout = 10 * time.Second

func cmdServe(file *config.File) *cli.Command {
	var initialSync bool
	var storageCfg config.Storage
	var embeddingCfg config.Embedding
	var extractorCfg config.Extractor
	var watcherCfg config.Watcher
	var serverCfg config.Server

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "initial-sync",
			Usage:       "Run a full synchronization once the server is up",
			Sources:     cli.EnvVars("NOTELENS_INITIAL_SYNC"),
			Destination: &initialSync,
		},
	}
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)
	flags = append(flags, extractorCfg.Flags()...)
	flags = append(flags, watcherCfg.Flags()...)
	flags = append(flags, serverCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the sync service and the websocket endpoint",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := loadFile(c, file, config.Groups{
				Storage:   &storageCfg,
				Embedding: &embeddingCfg,
				Extractor: &extractorCfg,
				Watcher:   &watcherCfg,
				Server:    &serverCfg,
			}); err != nil {
				return err
			}

			logger := logging.Default()
			logger.Info("Service configuration",
				"storage", storageCfg.LogAttrs(),
				"embedding", embeddingCfg.LogAttrs(),
				"extractor", extractorCfg.LogAttrs(),
				"watcher", watcherCfg.LogAttrs(),
				"server", serverCfg.LogAttrs(),
			)

			embedder, err := embeddingCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize embedding")
			}

			repo, err := storageCfg.Configure(ctx, embedder.Dimension())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			msgBus := bus.New()
			client := usecase.NewClient(msgBus, usecase.DefaultConfig())
			gateway := ws.New(client, serverCfg.GatewayOptions()...)
			extractor := extractorCfg.Configure()

			watcher, err := watcherCfg.Configure(extractor.SourcePath(), func(ctx context.Context, path string) {
				if err := client.NotifySourceChanged(ctx, path); err != nil {
					_ = errutil.Handle(ctx, err, "failed to queue source change")
				}
			})
			if err != nil {
				return err
			}

			dispatcher := usecase.NewDispatcher(msgBus, storage.New(repo, embedder), extractor,
				usecase.WithDispatcherWatcher(watcher),
				usecase.WithDispatcherBroadcaster(gateway),
			)

			server := &http.Server{
				Addr: serverCfg.Addr(),
				Handler: httpctrl.New(
					httpctrl.WithGateway(gateway),
					httpctrl.WithProgress(dispatcher.Tracker()),
					httpctrl.WithWatcher(watcher),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := watcher.Start(ctx); err != nil {
				// setup reports the watcher as unavailable until the database appears
				_ = errutil.Handle(ctx, err, "failed to start watcher")
			}

			eg, ctx := errgroup.WithContext(ctx)

			eg.Go(func() error {
				return dispatcher.Run(ctx)
			})

			eg.Go(func() error {
				logger.Info("Starting HTTP server", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "failed to start server", goerr.V("addr", server.Addr))
				}
				return nil
			})

			if initialSync {
				eg.Go(func() error {
					result, err := client.StartSetup(ctx)
					if err != nil {
						_ = errutil.Handle(ctx, err, "initial sync failed")
						return nil
					}
					logger.Info("Initial sync completed", "stats", result.Stats)
					return nil
				})
			}

			eg.Go(func() error {
				<-ctx.Done()
				logger.Info("Shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				var errs []error
				if err := gateway.Close(shutdownCtx); err != nil {
					errs = append(errs, err)
				}
				if err := server.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, goerr.Wrap(err, "failed to shutdown server gracefully"))
				}
				msgBus.Close()
				if err := watcher.Stop(); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			})

			if err := eg.Wait(); err != nil {
				return err
			}
			logger.Info("Server shutdown completed")
			return nil
		},
	}
}
