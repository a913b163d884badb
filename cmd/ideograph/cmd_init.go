package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/pathutil"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the graph store seeded from the fork tree",
		Long: `Create the graph store and seed it with the positions and edges of
the fork tree: two positions per fork joined by a contradiction, and
implications from each parent fork's poles to its children.

Examples:
  ideograph init                          # Canonical tree into ~/.ideograph/graph.db
  ideograph init --forks classical        # A built-in catalog
  ideograph init --forks ./my-forks.yaml  # A custom tree
  ideograph init --force                  # Discard the existing graph and reseed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")

			if force {
				settings, err := loadSettings(cmd)
				if err != nil {
					return err
				}
				storePath, err := resolveStorePath(cmd, settings)
				if err != nil {
					return fmt.Errorf("failed to resolve store path: %w", err)
				}
				if err := os.Remove(storePath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove existing graph: %w", err)
				}
			}

			ws, err := openWorkspace(cmd, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			if ws.seeded {
				if err := ws.save(cmd.Context()); err != nil {
					return err
				}
			}

			stats := ws.graph.Stats()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"store":     pathutil.RedactPath(ws.storePath),
					"seeded":    ws.seeded,
					"forks":     ws.tree.Len(),
					"positions": stats.Positions,
					"edges":     stats.Edges,
				})
			}

			if !ws.seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "Graph already initialized at %s (%d positions). Use --force to reseed.\n",
					pathutil.RedactPath(ws.storePath), stats.Positions)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized graph at %s\n", pathutil.RedactPath(ws.storePath))
			fmt.Fprintf(cmd.OutOrStdout(), "  %d forks -> %d positions, %d edges\n", ws.tree.Len(), stats.Positions, stats.Edges)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Discard any existing graph and reseed")

	return cmd
}
