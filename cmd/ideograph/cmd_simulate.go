package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/simulation"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Walk a synthetic population through the fork tree",
		Long: `Draw a population of walkers from the archetype catalog and walk
each through every fork, departing from its archetype with probability
--noise. Reports how the population divided, how many walkers the
archetypes recover, and the attractors, voids and decisive forks the
run left behind.

The run is recorded in the store unless --dry-run is set, in which case
it walks a fresh graph seeded from the fork tree.

Examples:
  ideograph simulate
  ideograph simulate --walkers 500 --noise 0.2 --seed 42
  ideograph simulate --dry-run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			name, _ := cmd.Flags().GetString("name")

			ws, err := openWorkspace(cmd, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			sim := ws.settings.Simulation
			if cmd.Flags().Changed("walkers") {
				sim.Walkers, _ = cmd.Flags().GetInt("walkers")
			}
			if cmd.Flags().Changed("noise") {
				sim.Noise, _ = cmd.Flags().GetFloat64("noise")
			}
			if cmd.Flags().Changed("workers") {
				sim.Workers, _ = cmd.Flags().GetInt("workers")
			}
			if cmd.Flags().Changed("seed") {
				sim.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if sim.Noise < 0 || sim.Noise > 1 {
				return fmt.Errorf("--noise must be between 0 and 1, got %f", sim.Noise)
			}
			if sim.Workers < 1 {
				return fmt.Errorf("--workers must be positive, got %d", sim.Workers)
			}

			g := ws.graph
			if dryRun {
				g = graph.New(ws.settings.GraphConfig(), graph.WithLogger(ws.logger))
			}

			runner := simulation.NewRunner(ws.tree,
				simulation.WithLogger(ws.logger),
				simulation.WithDetectorOptions(ws.settings.DetectorOptions()))
			result, err := runner.Run(cmd.Context(), g, simulation.Scenario{
				Name:    name,
				Walkers: sim.Walkers,
				Noise:   sim.Noise,
				Workers: sim.Workers,
				Seed:    sim.Seed,
			})
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if !dryRun {
				if err := ws.save(cmd.Context()); err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d walkers, seed %d, %s\n", result.RunID, sim.Walkers, result.Seed, result.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  %d defection(s), %.0f%% recovered by archetype\n", result.Defections, result.Recovery*100)

			fmt.Fprintln(out, "\nPopulation:")
			for _, c := range result.Population {
				fmt.Fprintf(out, "  %-28s %d\n", c.Name, c.Walkers)
			}
			if len(result.Attractors) > 0 {
				fmt.Fprintln(out, "\nAttractors:")
				for _, a := range result.Attractors {
					fmt.Fprintf(out, "  %-24s strength %.2f, %d walker(s)\n", a.CenterID, a.Strength, a.UniqueWalkers)
				}
			}
			if len(result.Voids) > 0 {
				fmt.Fprintln(out, "\nVoids:")
				for _, v := range result.Voids {
					fmt.Fprintf(out, "  %-24s expected %.1f, actual %d\n", v.PositionID, v.ExpectedVisitors, v.ActualVisitors)
				}
			}
			if len(result.MinimalSet) > 0 {
				fmt.Fprintf(out, "\nMinimal fork set (%d):\n", len(result.MinimalSet))
				for _, id := range result.MinimalSet {
					fmt.Fprintf(out, "  %s\n", id)
				}
			}
			if dryRun {
				fmt.Fprintln(out, "\nDry run: store unchanged.")
			}
			return nil
		},
	}

	cmd.Flags().Int("walkers", 0, "Population size (default from config)")
	cmd.Flags().Float64("noise", 0, "Probability of departing from the archetype on a fork (default from config)")
	cmd.Flags().Int("workers", 0, "Walkers stepping concurrently (default from config)")
	cmd.Flags().Int64("seed", 0, "Random seed; 0 picks one (default from config)")
	cmd.Flags().String("name", "", "Scenario name recorded with the run")
	cmd.Flags().Bool("dry-run", false, "Walk a fresh graph and leave the store untouched")

	return cmd
}
