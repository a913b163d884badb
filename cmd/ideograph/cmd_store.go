package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/backup"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/pathutil"
	"github.com/nvandessel/ideograph/internal/ranking"
	"github.com/nvandessel/ideograph/internal/store"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the graph for consistency issues",
		Long: `Validate the graph for consistency issues.

This command checks for:
  - Dangling references (edges to positions that do not exist)
  - Self-references (edges from a position to itself)
  - Pairs that both imply and contradict each other
  - Cycles in prioritizes_over edges
  - Walker choices on unknown positions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			issues := store.Validate(ws.graph)
			valid := len(issues) == 0

			if jsonOut {
				out := map[string]interface{}{
					"valid":       valid,
					"error_count": len(issues),
					"store":       pathutil.RedactPath(ws.storePath),
				}
				if !valid {
					out["errors"] = issues
					out["message"] = fmt.Sprintf("Found %d validation error(s)", len(issues))
				} else {
					out["message"] = "Graph is valid"
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			if valid {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Graph is valid - no issues found.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✗ Found %d validation error(s):\n\n", len(issues))
			for i, ve := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s] %s\n", i+1, ve.Issue, ve.Subject)
				fmt.Fprintf(cmd.OutOrStdout(), "   Field: %s\n", ve.Field)
				fmt.Fprintf(cmd.OutOrStdout(), "   References: %s\n\n", ve.RefID)
			}
			return nil
		},
	}

	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the graph to a JSON or YAML document",
		Long: `Write every position, edge and walker to a portable document.
The format follows the extension: .yaml or .yml writes YAML, anything
else JSON. The document can be used directly as a --store.

Examples:
  ideograph export graph.json
  ideograph export ~/backups/graph.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outPath := args[0]

			format := store.FormatJSON
			switch strings.ToLower(filepath.Ext(outPath)) {
			case ".yaml", ".yml":
				format = store.FormatYAML
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			if err := store.NewDocumentStore(outPath, format).Save(ctx, ws.graph); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			stats := ws.graph.Stats()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":      outPath,
					"format":    string(format),
					"positions": stats.Positions,
					"edges":     stats.Edges,
					"walkers":   stats.Walkers,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d positions, %d edges, %d walkers to %s\n",
				stats.Positions, stats.Edges, stats.Walkers, outPath)
			return nil
		},
	}

	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics and the most central positions",
		Long: `Display counts of positions, edges and walkers, the edge type and
domain breakdowns, and the positions ranked highest by PageRank.

Examples:
  ideograph stats
  ideograph stats --top 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			topN, _ := cmd.Flags().GetInt("top")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			stats := ws.graph.Stats()
			scores, err := ranking.ComputePageRank(ctx, ws.graph, ranking.DefaultPageRankConfig())
			if err != nil {
				return fmt.Errorf("compute PageRank: %w", err)
			}
			top := ranking.Top(scores, topN)

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"stats":   stats,
					"central": top,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Positions: %d\nEdges:     %d\nWalkers:   %d\nVisits:    %d\n",
				stats.Positions, stats.Edges, stats.Walkers, stats.TotalVisits)
			fmt.Fprintf(out, "Average edge weight: %.3f\n", stats.AvgEdgeWeight)

			if len(stats.EdgeTypes) > 0 {
				fmt.Fprintln(out, "\nEdge types:")
				keys := make([]string, 0, len(stats.EdgeTypes))
				for t := range stats.EdgeTypes {
					keys = append(keys, string(t))
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %-20s %d\n", k, stats.EdgeTypes[models.EdgeType(k)])
				}
			}
			if len(stats.Domains) > 0 {
				fmt.Fprintln(out, "\nDomains:")
				keys := make([]string, 0, len(stats.Domains))
				for d := range stats.Domains {
					keys = append(keys, string(d))
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %-20s %d\n", k, stats.Domains[models.Domain(k)])
				}
			}

			if len(top) > 0 {
				fmt.Fprintln(out, "\nMost central:")
				for _, r := range top {
					claim := ""
					if p, ok := ws.graph.Position(r.ID); ok {
						claim = p.Claim
					}
					fmt.Fprintf(out, "  %-24s %.3f  %s\n", r.ID, r.Score, claim)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("top", 10, "Central positions to list")

	return cmd
}

func newDecayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Weaken edges no walk has touched recently",
		Long: `Weaken every edge not updated within --idle by the configured
graph.decay_rate. Edges lose weight but are never removed.

Examples:
  ideograph decay
  ideograph decay --idle 2w`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			idleFlag, _ := cmd.Flags().GetString("idle")

			idle, err := backup.ParseDuration(idleFlag)
			if err != nil {
				return fmt.Errorf("invalid --idle: %w", err)
			}
			if idle < 0 {
				return fmt.Errorf("--idle must not be negative, got %s", idleFlag)
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			cutoff := time.Now().Add(-idle)
			n := ws.graph.Decay(cutoff)
			if n > 0 {
				if err := ws.save(cmd.Context()); err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"decayed":    n,
					"rate":       ws.graph.Config().DecayRate,
					"cutoff":     cutoff.UTC(),
					"avg_weight": ws.graph.Stats().AvgEdgeWeight,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decayed %d edge(s) idle since %s by %.2f\n",
				n, cutoff.Local().Format(time.DateTime), ws.graph.Config().DecayRate)
			return nil
		},
	}

	cmd.Flags().String("idle", "30d", "Decay edges not updated within this window (Go duration, or d/w suffix)")

	return cmd
}
