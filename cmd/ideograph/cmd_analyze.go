package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/spreading"
	"github.com/nvandessel/ideograph/internal/tension"
)

func newTensionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tensions",
		Short: "Find productive tensions in a walker's positions",
		Long: `Analyze a walker's structural balance: how consistent its accepted
and rejected positions are with the edges between them. Prints the
tension points worth raising, best challenge value first, and the
unvisited positions most worth challenging the walker with.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			limit, _ := cmd.Flags().GetInt("limit")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			w, err := ws.walker(sessionID)
			if err != nil {
				return err
			}

			analyzer := tension.NewAnalyzer(ws.graph)
			balance := analyzer.BalanceState(w)
			tensions := analyzer.FindProductiveTensions(w)
			challenges := analyzer.SuggestChallenge(w, limit)

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"session_id":  w.SessionID,
					"sgm":         balance.SGM,
					"extremeness": balance.Extremeness,
					"constraint":  balance.Constraint,
					"tensions":    tensions,
					"challenges":  challenges,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", w.SessionID)
			fmt.Fprintf(cmd.OutOrStdout(), "  balance %.2f, extremeness %.2f, constraint %.2f over %d attitude(s)\n",
				balance.SGM, balance.Extremeness, balance.Constraint, len(balance.Attitudes))

			if len(tensions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nNo productive tensions.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "\nTensions:")
				for _, t := range tensions {
					fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s  score %.2f, tractability %.2f\n",
						t.Type, strings.Join(t.PositionIDs, ", "), t.Score, t.Tractability)
					if t.Reasoning != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", t.Reasoning)
					}
				}
			}

			if len(challenges) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nWorth challenging:")
				for _, c := range challenges {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s (%.2f)\n", c.Position.ID, c.Position.Claim, c.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Walker session to analyze")
	cmd.Flags().Int("limit", 3, "Challenge suggestions to list")

	return cmd
}

func newSpreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spread",
		Short: "Predict a walker's next positions by spreading its commitments",
		Long: `Seed the walker's accepted positions with positive activation and its
rejected ones with negative activation, then let activation flow along
the graph's edges. Contradictions flip the sign; priorities carry none.

Positive scores predict positions the walker will accept, negative
scores positions it will reject. Visited positions are left out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			limit, _ := cmd.Flags().GetInt("limit")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			w, err := ws.walker(sessionID)
			if err != nil {
				return err
			}

			results, err := spreading.NewEngine(spreading.DefaultConfig()).Propagate(cmd.Context(), ws.graph, w)
			if err != nil {
				return fmt.Errorf("spreading activation: %w", err)
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"session_id":  w.SessionID,
					"predictions": results,
				})
			}

			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s activates no unvisited positions.\n", w.SessionID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s:\n", w.SessionID)
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %+.2f  %d hop(s) from %s\n", r.PositionID, r.Activation, r.Distance, r.SeedSource)
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Walker session to propagate")
	cmd.Flags().Int("limit", 10, "Predictions to list (0 for all)")

	return cmd
}

// detectorOptionsFromFlags overrides configured thresholds with any flags
// the user set.
func detectorOptionsFromFlags(cmd *cobra.Command, ws *workspace) attractors.Options {
	opts := ws.settings.DetectorOptions()
	if cmd.Flags().Changed("min-visits") {
		opts.MinVisits, _ = cmd.Flags().GetInt("min-visits")
	}
	if cmd.Flags().Changed("min-strength") {
		opts.MinStrength, _ = cmd.Flags().GetFloat64("min-strength")
	}
	if cmd.Flags().Changed("min-expected") {
		opts.MinExpected, _ = cmd.Flags().GetFloat64("min-expected")
	}
	if cmd.Flags().Changed("min-void-ratio") {
		opts.MinVoidRatio, _ = cmd.Flags().GetFloat64("min-void-ratio")
	}
	return opts
}

func newAttractorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attractors",
		Short: "Detect heavily visited positions that pull walkers in",
		Long: `Detect attractors: positions with many visits and strong incoming
edges. The basin of an attractor is the set of positions feeding it.
With --session, also report the attractor whose basin holds most of
that walker's accepted positions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			opts := detectorOptionsFromFlags(cmd, ws)
			detector := attractors.NewDetector(ws.graph, opts)
			found := detector.DetectAttractors(opts.MinVisits, opts.MinStrength)

			var basin *attractors.Attractor
			if sessionID != "" {
				w, err := ws.walker(sessionID)
				if err != nil {
					return err
				}
				if b, ok := detector.FindBasinForWalker(w); ok {
					basin = &b
				}
			}

			if jsonOut {
				out := map[string]interface{}{"attractors": found, "count": len(found)}
				if basin != nil {
					out["basin"] = basin
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			if len(found) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No attractors with at least %d visits and strength %.2f.\n", opts.MinVisits, opts.MinStrength)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Attractors (%d):\n", len(found))
				for _, a := range found {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", a.CenterID, a.CenterClaim)
					fmt.Fprintf(cmd.OutOrStdout(), "      strength %.2f, %d visits by %d walker(s), basin of %d\n",
						a.Strength, a.VisitCount, a.UniqueWalkers, len(a.BasinIDs))
				}
			}
			if basin != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSession %s sits in the basin of %s.\n", sessionID, basin.CenterID)
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Also find this walker's basin")
	cmd.Flags().Int("min-visits", 0, "Minimum visits for an attractor center (default from config)")
	cmd.Flags().Float64("min-strength", 0, "Minimum attractor strength (default from config)")

	return cmd
}

func newVoidsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voids",
		Short: "Detect positions the graph predicts visitors for but few reach",
		Long: `Detect voids: positions whose incoming edges predict more visitors
than actually arrive. Each void lists why it might be avoided. With
--session, also suggest voids adjacent to that walker's path and the
unvisited positions farthest from what it accepted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			limit, _ := cmd.Flags().GetInt("limit")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			opts := detectorOptionsFromFlags(cmd, ws)
			detector := attractors.NewDetector(ws.graph, opts)
			voids := detector.DetectVoids(opts.MinExpected, opts.MinVoidRatio)

			var suggested []attractors.Void
			var outside []models.Position
			if sessionID != "" {
				w, err := ws.walker(sessionID)
				if err != nil {
					return err
				}
				suggested = detector.SuggestVoidExploration(w, limit)
				outside = ws.graph.SuggestOutsideBasin(w, limit)
			}

			if jsonOut {
				out := map[string]interface{}{"voids": voids, "count": len(voids)}
				if sessionID != "" {
					out["suggested"] = suggested
					out["outside_basin"] = outside
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			if len(voids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No voids.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Voids (%d):\n", len(voids))
				for _, v := range voids {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", v.PositionID, v.PositionClaim)
					fmt.Fprintf(cmd.OutOrStdout(), "      expected %.1f, actual %d (void ratio %.2f)\n",
						v.ExpectedVisitors, v.ActualVisitors, v.VoidRatio)
					for _, r := range v.Reasons {
						fmt.Fprintf(cmd.OutOrStdout(), "      - %s\n", r)
					}
				}
			}
			if len(suggested) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nWorth exploring next:")
				for _, v := range suggested {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", v.PositionID, v.PositionClaim)
				}
			}
			if len(outside) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nFarthest from your basin:")
				for _, p := range outside {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", p.ID, p.Claim)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Also suggest voids adjacent to this walker's path")
	cmd.Flags().Float64("min-expected", 0, "Minimum expected visitors (default from config)")
	cmd.Flags().Float64("min-void-ratio", 0, "Minimum missing fraction of expected visitors (default from config)")
	cmd.Flags().Int("limit", 3, "Exploration suggestions to list, per kind")

	return cmd
}
