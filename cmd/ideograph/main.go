package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ideograph",
		Short: "Ideological graph - map how people move through belief space",
		Long: `ideograph maintains a weighted graph of ideological positions that
learns from walkers: people or simulated agents stepping through
positions by accepting or rejecting them.

It detects attractors and voids, probes walkers where the graph is
least certain, finds productive tensions, and compacts the fork tree
to the few questions that predict everything else.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("store", "", "Graph store path (.db/.sqlite for SQLite, .json/.yaml for documents)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.ideograph/config.yaml)")
	rootCmd.PersistentFlags().String("forks", "", "Fork tree: built-in catalog name or YAML/JSON file (default canonical)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		// Walking
		newWalkCmd(),
		newProbeCmd(),
		newTensionsCmd(),
		newSpreadCmd(),
		// Population analysis
		newAttractorsCmd(),
		newVoidsCmd(),
		newForksCmd(),
		newArchetypesCmd(),
		newPatternsCmd(),
		newStatsCmd(),
		newSimulateCmd(),
		// Text analysis
		newProfileCmd(),
		newStanceCmd(),
		// Graph maintenance
		newGraphCmd(),
		newValidateCmd(),
		newExportCmd(),
		newDecayCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
