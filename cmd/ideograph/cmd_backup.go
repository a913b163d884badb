package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/backup"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/pathutil"
	"github.com/nvandessel/ideograph/internal/store"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed, checksummed copy of the graph",
		Long: `Back up the whole graph (positions, edges and walkers) to a gzipped
file with a checksummed header line.

Default location: ~/.ideograph/backups/ideograph-backup-YYYYMMDD-HHMMSS.json.gz
Old backups in the same directory are pruned by the retention settings
(default: the last 10, plus anything younger than 30 days).

Examples:
  ideograph backup
  ideograph backup --output before-sim.json.gz
  ideograph backup list
  ideograph backup verify <file>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if outputPath == "" {
				dir, err := ws.settings.BackupDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GeneratePath(dir, time.Now())
			}

			header, err := backup.Backup(ws.graph, outputPath, map[string]string{
				"store":   pathutil.RedactPath(ws.storePath),
				"version": version,
			})
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			policy, err := ws.settings.RetentionPolicy()
			if err != nil {
				return err
			}
			deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}
			ws.logger.Debug("backup written", "path", outputPath, "pruned", len(deleted))

			if jsonOut {
				var size int64
				if fi, err := os.Stat(outputPath); err == nil {
					size = fi.Size()
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":       outputPath,
					"positions":  header.Positions,
					"edges":      header.Edges,
					"walkers":    header.Walkers,
					"checksum":   header.Checksum,
					"size_bytes": size,
					"pruned":     len(deleted),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d positions, %d edges, %d walkers\n",
				header.Positions, header.Edges, header.Walkers)
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old backup(s)\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path (default: timestamped file in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dir, err := settings.BackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}

			backups, err := backup.ListBackups(dir)
			if err != nil {
				return err
			}
			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"dir":     dir,
					"count":   len(backups),
					"backups": backups,
				})
			}

			if len(backups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No backups in %s\n", dir)
				return nil
			}
			for _, b := range backups {
				if b.Err != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  unreadable: %s\n", filepath.Base(b.Path), b.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d positions, %d edges, %d walkers, %d bytes\n",
					filepath.Base(b.Path), b.CreatedAt.Local().Format(time.DateTime), b.Positions, b.Edges, b.Walkers, b.Size)
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a backup's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.Verify(args[0])
			if jsonOut {
				out := map[string]interface{}{"path": args[0], "valid": err == nil}
				if err != nil {
					out["error"] = err.Error()
				} else {
					out["header"] = header
				}
				if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("backup is invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is intact (%s)\n", args[0], header.Checksum)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore the graph from a backup",
		Long: `Restore the graph from a backup file written by 'ideograph backup'.
The checksum is verified before anything is written.

Modes:
  merge   - keep everything stored and add what the backup has that the
            store lacks (default; works on an empty store)
  replace - discard the stored graph and save the backup in its place

Examples:
  ideograph restore ~/.ideograph/backups/ideograph-backup-20260206-120000.json.gz
  ideograph restore before-sim.json.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			storePath, err := resolveStorePath(cmd, settings)
			if err != nil {
				return fmt.Errorf("failed to resolve store path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(storePath), 0700); err != nil {
				return fmt.Errorf("failed to create store directory: %w", err)
			}
			gs, err := store.Open(storePath)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer gs.Close()

			logger := logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr())
			result, err := backup.Restore(cmd.Context(), args[0], gs, settings.GraphConfig(), mode, graph.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"mode":   mode,
					"store":  pathutil.RedactPath(storePath),
					"result": result,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restore complete (mode: %s)\n", mode)
			fmt.Fprintf(out, "  Positions: %d restored, %d skipped\n", result.PositionsRestored, result.PositionsSkipped)
			fmt.Fprintf(out, "  Edges:     %d restored, %d skipped\n", result.EdgesRestored, result.EdgesSkipped)
			fmt.Fprintf(out, "  Walkers:   %d restored, %d skipped\n", result.WalkersRestored, result.WalkersSkipped)
			return nil
		},
	}

	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")

	return cmd
}
