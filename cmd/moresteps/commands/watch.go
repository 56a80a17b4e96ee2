// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bureau-foundation/moresteps/cmd/moresteps/cli"
	"github.com/bureau-foundation/moresteps/lib/notify"
	"github.com/bureau-foundation/moresteps/lib/reconcile"
	"github.com/bureau-foundation/moresteps/lib/settings"
	"github.com/bureau-foundation/moresteps/lib/stream"
	"github.com/bureau-foundation/moresteps/lib/version"
)

func (e *environment) watchCommand() *cli.Command {
	var (
		socketPath   string
		recordPath   string
		documentPath string
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Enrich a live or recorded result stream",
		Description: `Enrich a live or recorded result stream.

The source is a ws:// or wss:// URL, or a capture file written by
--record (.zst and .lz4 captures are decompressed). Step-by-step events
are held until their full solution image is fetched and patched in;
every event is printed to stdout, one per line, in arrival order.

With --document, the rendered HTML at that path is reconciled after the
stream ends: placeholders around patched images are unwrapped and upsell
footers removed. The result is written to stdout.`,
		Usage: "moresteps watch <ws-url | capture-file> [flags]",
		Examples: []cli.Example{
			{Description: "Watch a live stream and keep a compressed capture", Command: "moresteps watch wss://www.wolframalpha.com/n/v1/api/fetcher/results --record session.jsonl.zst"},
			{Description: "Replay a capture offline", Command: "moresteps watch session.jsonl.zst"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := e.flags("watch")
			flagSet.StringVar(&socketPath, "socket", "", "use the background context served at this socket")
			flagSet.StringVar(&recordPath, "record", "", "also record the unmodified stream to this capture file")
			flagSet.StringVar(&documentPath, "document", "", "reconcile this rendered HTML document after the stream ends")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("watch needs exactly one source, got %d", len(args))
			}
			source := args[0]

			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			store, err := e.openSettings(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			hideBanner, err := store.Bool(ctx, settings.HideBanner)
			if err != nil {
				return err
			}
			if !hideBanner {
				fmt.Fprintf(e.stderr, "moresteps %s: watching %s\n", version.Short(), source)
			}

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

			interceptor, err := stream.NewInterceptor(ctx, stream.InterceptorConfig{
				Enricher: running.page.Enricher(),
				Reporter: running.board,
				Logger:   logger.With("component", "stream"),
			})
			if err != nil {
				return err
			}

			var output sync.Mutex
			deliver := interceptor.Wrap(func(event stream.Event) {
				output.Lock()
				defer output.Unlock()
				fmt.Fprintf(e.stdout, "%s\n", event.Data)
			})

			listener := deliver
			if recordPath != "" {
				recorder, err := stream.Create(recordPath)
				if err != nil {
					return err
				}
				defer func() {
					if err := recorder.Close(); err != nil {
						logger.Error("closing capture", "path", recordPath, "error", err)
					}
				}()
				listener = func(event stream.Event) {
					if err := recorder.Record(event); err != nil {
						logger.Error("recording event", "path", recordPath, "error", err)
					}
					deliver(event)
				}
			}

			if err := runSource(ctx, source, listener, logger); err != nil {
				return err
			}
			interceptor.Wait()

			if documentPath != "" {
				if err := reconcileDocument(documentPath, running.page.Markers(), e.stdout, logger); err != nil {
					return err
				}
			}

			if notices := running.board.Render(notify.Renderer(e.stderr), 80); notices != "" {
				fmt.Fprintln(e.stderr, notices)
			}
			return nil
		},
	}
}

// runSource feeds listener from a WebSocket URL or a capture file until
// the source ends.
func runSource(ctx context.Context, source string, listener stream.Listener, logger *slog.Logger) error {
	if strings.HasPrefix(source, "ws://") || strings.HasPrefix(source, "wss://") {
		socket, err := stream.Dial(ctx, source, logger.With("component", "stream"))
		if err != nil {
			return err
		}
		defer socket.Close()
		socket.AddListener(listener)
		return socket.Run(ctx)
	}

	count, err := stream.Replay(ctx, source, listener)
	if err != nil {
		return err
	}
	logger.Info("capture replayed", "path", source, "events", count)
	return nil
}

// reconcileDocument treats every child of the document body as newly
// added, reconciles it against markers, and renders the result to
// output.
func reconcileDocument(path string, markers *reconcile.MarkerSet, output io.Writer, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer file.Close()

	document, err := html.Parse(file)
	if err != nil {
		return fmt.Errorf("parsing document %s: %w", path, err)
	}

	body := findElement(document, atom.Body)
	if body == nil {
		return fmt.Errorf("document %s has no body", path)
	}
	var added []*html.Node
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		added = append(added, child)
	}

	stats := reconcile.New(markers, logger.With("component", "reconcile")).Observe([]reconcile.Mutation{{Added: added}})
	logger.Info("document reconciled",
		"path", path,
		"images_unwrapped", stats.ImagesUnwrapped,
		"footers_removed", stats.FootersRemoved,
	)
	return html.Render(output, document)
}

func findElement(node *html.Node, element atom.Atom) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == element {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, element); found != nil {
			return found
		}
	}
	return nil
}
