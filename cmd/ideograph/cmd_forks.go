package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/compaction"
	"github.com/nvandessel/ideograph/internal/forks"
)

func newForksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forks",
		Short: "Rank forks by decisiveness and find the minimal predictive set",
		Long: `Score every fork in the tree by how much it tells us about the rest:
downstream reach, information gain, betweenness, and (with recorded
walkers) how well its answer predicts the walker's other answers.

Prints the forks most decisive first, the smallest set of forks whose
answers reach --target accuracy, and whether the tree is linear or
divergent.

Examples:
  ideograph forks                 # Decisiveness over recorded walkers
  ideograph forks --target 0.9    # Larger minimal set
  ideograph forks --tree          # Print the fork tree itself`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			target, _ := cmd.Flags().GetFloat64("target")
			limit, _ := cmd.Flags().GetInt("limit")
			showTree, _ := cmd.Flags().GetBool("tree")

			if target <= 0 || target > 1 {
				return fmt.Errorf("--target must be in (0.0, 1.0], got %f", target)
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if showTree {
				if jsonOut {
					data, err := ws.tree.EncodeJSON()
					if err != nil {
						return fmt.Errorf("encode tree: %w", err)
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				printTree(cmd.OutOrStdout(), ws.tree)
				return nil
			}

			walkers := ws.graph.Walkers()
			compactor := compaction.NewCompactor(ws.tree)
			ranked := compactor.Analyze(walkers)
			minimal := compactor.MinimalSet(walkers, target)
			structure := compactor.AnalyzeStructure()
			if limit > 0 && limit < len(ranked) {
				ranked = ranked[:limit]
			}

			minimalIDs := make([]string, len(minimal))
			for i, f := range minimal {
				minimalIDs[i] = f.ID
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"structure":    structure,
					"decisiveness": ranked,
					"minimal_set":  minimalIDs,
					"walkers":      len(walkers),
				})
			}

			shape := "linear"
			if structure.IsDivergent {
				shape = "divergent"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d forks, depth %d, %s (linearity %.2f, avg branching %.2f)\n",
				structure.TotalForks, structure.MaxDepth, shape, structure.Linearity, structure.AvgBranching)
			fmt.Fprintf(cmd.OutOrStdout(), "Analyzed over %d walker(s)\n\n", len(walkers))

			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %8s %8s %8s %6s\n", "FORK", "SCORE", "GAIN", "ACCURACY", "DEPTH")
			for _, d := range ranked {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %8.3f %8.3f %8.3f %6d\n",
					d.ForkID, d.DecisivenessScore(), d.InformationGain, d.PredictionAccuracy, d.Depth)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nMinimal set for %.0f%% accuracy (%d forks):\n", target*100, len(minimal))
			for _, f := range minimal {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-26s %s\n", f.ID, f.Question)
			}
			return nil
		},
	}

	cmd.Flags().Float64("target", compaction.DefaultTargetAccuracy, "Accuracy the minimal fork set must reach")
	cmd.Flags().Int("limit", 0, "Forks to list (default: all)")
	cmd.Flags().Bool("tree", false, "Print the fork tree instead of the analysis")

	return cmd
}

// printTree writes the fork tree indented by depth.
func printTree(w io.Writer, tree *forks.Tree) {
	var walk func(f forks.Fork, depth int)
	walk = func(f forks.Fork, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(w, "%s%s [%s] %s\n", indent, f.ID, f.Level, f.Question)
		fmt.Fprintf(w, "%s  a: %s\n", indent, f.OptionA)
		fmt.Fprintf(w, "%s  b: %s\n", indent, f.OptionB)
		for _, child := range tree.Children(f.ID) {
			walk(child, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		walk(root, 0)
	}
}

func newArchetypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archetypes",
		Short: "List political archetypes or match a walker against them",
		Long: `List the archetypes: named patterns of fork choices with their share
of the population. With --session, report which archetype the
walker's choices match best.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			limit, _ := cmd.Flags().GetInt("limit")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			all := compaction.Archetypes()
			if limit <= 0 {
				limit = len(all)
			}
			listed := compaction.NewCompactor(ws.tree).ExtractArchetypes(limit)

			if sessionID != "" {
				w, err := ws.walker(sessionID)
				if err != nil {
					return err
				}
				best, ok := compaction.BestArchetype(w, all)
				if jsonOut {
					out := map[string]interface{}{"session_id": w.SessionID, "matched": ok}
					if ok {
						out["match"] = best
					}
					return printJSON(cmd.OutOrStdout(), out)
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Session %s matches no archetype yet.\n", w.SessionID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s is closest to %s (%.2f)\n  %s\n",
					w.SessionID, best.Archetype.Name, best.Score, best.Archetype.Description)
				return nil
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), listed)
			}
			for _, a := range listed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%.0f%% of population)\n", a.Name, a.PopulationShare*100)
				if a.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", a.Description)
				}
				choices := make([]string, len(a.ForkChoices))
				for i, c := range a.ForkChoices {
					choices[i] = c.ForkID + "=" + string(c.Pole)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  forks: %s\n", strings.Join(choices, ", "))
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Match this walker against the archetypes")
	cmd.Flags().Int("limit", 0, "Archetypes to list (default: all)")

	return cmd
}
