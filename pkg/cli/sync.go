package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/notelens/pkg/cli/config"
	"github.com/secmon-lab/notelens/pkg/service/storage"
	"github.com/secmon-lab/notelens/pkg/usecase"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
	"github.com/secmon-lab/notelens/pkg/utils/safe"
)

func cmdSync(file *config.File) *cli.Command {
	var storageCfg config.Storage
	var embeddingCfg config.Embedding
	var extractorCfg config.Extractor

	var flags []cli.Flag
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)
	flags = append(flags, extractorCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Extract notes once and reconcile them into the vector store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := loadFile(c, file, config.Groups{
				Storage:   &storageCfg,
				Embedding: &embeddingCfg,
				Extractor: &extractorCfg,
			}); err != nil {
				return err
			}

			embedder, err := embeddingCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize embedding")
			}

			repo, err := storageCfg.Configure(ctx, embedder.Dimension())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			extractor := extractorCfg.Configure()
			tree, err := extractor.Extract(ctx, extractor.SourcePath(), func(fraction float64, msg string) {
				logging.From(ctx).Info("Extracting notes", "progress", fraction, "message", msg)
			})
			if err != nil {
				return goerr.Wrap(err, "failed to extract notes")
			}

			reconciler := usecase.NewReconciler(storage.New(repo, embedder))
			stats, err := reconciler.Reconcile(ctx, tree, func(ctx context.Context, p usecase.ItemProgress) {
				if p.Processed == 0 {
					return
				}
				logging.From(ctx).Debug("Processed note",
					"processed", p.Processed,
					"total", p.Total,
					"current", p.Current,
					"deleting", p.Deleting,
				)
			})
			printStats(os.Stdout, stats)
			if err != nil {
				return goerr.Wrap(err, "failed to reconcile notes")
			}
			return nil
		},
	}
}
