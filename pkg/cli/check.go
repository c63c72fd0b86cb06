package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/notelens/pkg/cli/config"
)

var ErrCheckFailed = goerr.New("environment check failed")

func cmdCheck(file *config.File) *cli.Command {
	var storageCfg config.Storage
	var embeddingCfg config.Embedding
	var extractorCfg config.Extractor

	var flags []cli.Flag
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)
	flags = append(flags, extractorCfg.Flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Verify the parser environment, the Notes database and the vector store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := loadFile(c, file, config.Groups{
				Storage:   &storageCfg,
				Embedding: &embeddingCfg,
				Extractor: &extractorCfg,
			}); err != nil {
				return err
			}

			failed := 0
			report := func(name string, err error) {
				printCheck(os.Stdout, name, err)
				if err != nil {
					failed++
				}
			}

			report("Note extraction", extractorCfg.Configure().Verify(ctx))

			_, err := embeddingCfg.Client(ctx)
			report("Embedding provider", err)

			repo, err := storageCfg.Configure(ctx, embeddingCfg.Dimension())
			if err == nil {
				err = repo.Ping(ctx)
				if closeErr := repo.Close(); err == nil {
					err = closeErr
				}
			}
			report("Vector store", err)

			if failed > 0 {
				return goerr.Wrap(ErrCheckFailed, "some checks failed", goerr.V("failed", failed))
			}
			return nil
		},
	}
}
