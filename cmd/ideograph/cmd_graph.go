package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/ranking"
	"github.com/nvandessel/ideograph/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize the ideological graph",
		Long: `Output the graph in DOT (Graphviz), JSON, or interactive HTML format.

Node size follows PageRank; attractors are highlighted in HTML output.
--serve implies HTML and keeps a local server with the view and its JSON
endpoints running until Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")

			parsed, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}
			if serve {
				parsed = visualization.FormatHTML
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			snap := ws.graph.Snapshot()

			pageRank, err := ranking.ComputePageRank(ctx, snap, ranking.DefaultPageRankConfig())
			if err != nil {
				return fmt.Errorf("compute PageRank: %w", err)
			}
			enrichment := &visualization.EnrichmentData{PageRank: pageRank}

			switch parsed {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(snap, enrichment))

			case visualization.FormatJSON:
				if err := printJSON(cmd.OutOrStdout(), visualization.RenderJSON(snap, enrichment)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}

			case visualization.FormatHTML:
				opts := ws.settings.DetectorOptions()
				if serve {
					return runGraphServer(cmd, ctx, snap, opts, noOpen, ws)
				}
				found := attractors.NewDetector(snap, opts).DetectAttractors(opts.MinVisits, opts.MinStrength)
				return writeStaticHTML(cmd, snap, enrichment, found, output, noOpen)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot, json, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (html format only)")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")
	cmd.Flags().Bool("serve", false, "Start a local server with live JSON, DOT, attractor and void endpoints")

	return cmd
}

// writeStaticHTML renders the graph to a self-contained HTML file.
func writeStaticHTML(cmd *cobra.Command, snap *graph.Snapshot, enrichment *visualization.EnrichmentData, found []attractors.Attractor, output string, noOpen bool) error {
	htmlBytes, err := visualization.RenderHTML(snap, enrichment, found, "")
	if err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}

	outPath := output
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "ideograph-graph.html")
	}

	if err := os.WriteFile(outPath, htmlBytes, 0644); err != nil {
		return fmt.Errorf("write HTML file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", outPath)

	if !noOpen {
		if err := visualization.OpenBrowser(outPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
		}
	}
	return nil
}

// runGraphServer starts a local HTTP server and blocks until Ctrl-C.
func runGraphServer(cmd *cobra.Command, ctx context.Context, snap *graph.Snapshot, opts attractors.Options, noOpen bool, ws *workspace) error {
	srv := visualization.NewServer(snap, opts, ws.logger)

	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer stopSignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			srvCancel()
		case <-srvCtx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Graph server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
