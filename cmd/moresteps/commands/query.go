// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/moresteps/cmd/moresteps/cli"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/notify"
)

// queryResult is one line of `moresteps query` output.
type queryResult struct {
	ResultID string `json:"result_id"`
	Src      string `json:"src,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Host     string `json:"host,omitempty"`
	Found    bool   `json:"found"`
}

func (e *environment) queryCommand() *cli.Command {
	var (
		resultIDs   []string
		assumptions []string
		socketPath  string
		outputJSON  bool
	)
	return &cli.Command{
		Name:    "query",
		Summary: "Fetch step-by-step images for results of one query",
		Description: `Fetch step-by-step images for results of one query.

Runs the full page, content, and background chain: the results are
prefetched (as one batch when the consolidate option is on), then each
is requested the way a stream event would request it. Failures are shown
as notices and the command exits 1 if any result has no image.`,
		Usage: "moresteps query <input> --pod ID [--pod ID...] [flags]",
		Examples: []cli.Example{
			{Description: "Steps for an integral", Command: `moresteps query "integrate x^2 sin x" --pod Indefinite`},
			{Description: "Through a running serve process", Command: `moresteps query "solve x^2=4" --pod Result --socket ~/.local/state/moresteps/background.sock`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := e.flags("query")
			flagSet.StringArrayVar(&resultIDs, "pod", nil, "result (pod) identifier; repeatable")
			flagSet.StringArrayVar(&assumptions, "assumption", nil, "query assumption; repeatable")
			flagSet.StringVar(&socketPath, "socket", "", "use the background context served at this socket")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("query needs exactly one input, got %d", len(args))
			}
			if len(resultIDs) == 0 {
				return fmt.Errorf("at least one --pod is required")
			}
			input := args[0]

			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			store, err := e.openSettings(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			running, err := startContexts(ctx, cfg, store, socketPath, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := running.close(shutdown); err != nil {
					logger.Warn("shutdown incomplete", "error", err)
				}
			}()

			if err := running.page.Prefetch(ctx, input, resultIDs, assumptions); err != nil {
				return fmt.Errorf("prefetch: %w", err)
			}

			results := make([]queryResult, len(resultIDs))
			group, groupContext := errgroup.WithContext(ctx)
			for index, resultID := range resultIDs {
				group.Go(func() error {
					data, err := running.page.ImageData(groupContext, input, resultID, assumptions)
					if err != nil {
						return fmt.Errorf("requesting %s: %w", resultID, err)
					}
					results[index] = toQueryResult(resultID, data)
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			if outputJSON {
				if err := cli.WriteJSON(e.stdout, results); err != nil {
					return err
				}
			} else {
				writeQueryTable(e.stdout, results)
			}

			if notices := running.board.Render(notify.Renderer(e.stderr), 80); notices != "" {
				fmt.Fprintln(e.stderr, notices)
			}
			for _, result := range results {
				if !result.Found {
					return &cli.ExitError{Code: 1, Reason: "some results have no step-by-step image"}
				}
			}
			return nil
		},
	}
}

func toQueryResult(resultID string, data *envelope.ImageData) queryResult {
	if data == nil {
		return queryResult{ResultID: resultID}
	}
	return queryResult{
		ResultID: resultID,
		Src:      data.Src,
		Width:    data.Width,
		Height:   data.Height,
		Host:     data.Host,
		Found:    true,
	}
}

func writeQueryTable(output io.Writer, results []queryResult) {
	writer := tabwriter.NewWriter(output, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "RESULT\tSIZE\tIMAGE")
	for _, result := range results {
		if !result.Found {
			fmt.Fprintf(writer, "%s\t-\t(no image)\n", result.ResultID)
			continue
		}
		fmt.Fprintf(writer, "%s\t%dx%d\t%s\n", result.ResultID, result.Width, result.Height, result.Src)
	}
	writer.Flush()
}
