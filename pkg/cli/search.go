package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/notelens/pkg/controller/ws"
	"github.com/secmon-lab/notelens/pkg/service/storage"
	"github.com/secmon-lab/notelens/pkg/utils/logging"
)

var ErrEmptyQuery = goerr.New("search query is empty")

func cmdSearch() *cli.Command {
	var serverURL string
	var limit int
	var timeout time.Duration

	return &cli.Command{
		Name:      "search",
		Usage:     "Search notes through a running notelens server",
		ArgsUsage: "QUERY...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "Websocket endpoint of the running server",
				Value:       "ws://127.0.0.1:8000/ws",
				Sources:     cli.EnvVars("NOTELENS_SERVER"),
				Destination: &serverURL,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of results",
				Value:       storage.DefaultSearchLimit,
				Destination: &limit,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "Time limit for the search",
				Value:       30 * time.Second,
				Destination: &timeout,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.Wrap(ErrEmptyQuery, "usage: notelens search QUERY...")
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			client, err := ws.Dial(ctx, serverURL)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					logging.Default().Debug("failed to close connection", "error", err)
				}
			}()

			items, err := client.Search(ctx, query, limit)
			if err != nil {
				return goerr.Wrap(err, "failed to search notes", goerr.V("query", query))
			}
			printResults(os.Stdout, query, items)
			return nil
		},
	}
}
