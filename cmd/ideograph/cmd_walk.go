package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/sanitize"
)

// walkStep is one choice requested on the command line.
type walkStep struct {
	PositionID string `json:"position_id"`
	Accepted   bool   `json:"accepted"`
}

func newWalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Record a walker's choices and print suggested next positions",
		Long: `Record accepted and rejected positions for a walker. Each step
updates the graph's edge weights; the positions suggested after the
last step are printed.

Accepted positions are applied first, then rejected ones, each in the
order given.

Examples:
  ideograph walk --user alice --accept meaning_a,human_nature_b
  ideograph walk --session alice_1718000000 --reject change_a --reasoning "too costly"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			user, _ := cmd.Flags().GetString("user")
			sessionID, _ := cmd.Flags().GetString("session")
			accept, _ := cmd.Flags().GetStringSlice("accept")
			reject, _ := cmd.Flags().GetStringSlice("reject")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			reasoning, _ := cmd.Flags().GetString("reasoning")

			if confidence <= 0 || confidence > 1 {
				return fmt.Errorf("--confidence must be in (0.0, 1.0], got %f", confidence)
			}
			steps := make([]walkStep, 0, len(accept)+len(reject))
			for _, id := range accept {
				steps = append(steps, walkStep{PositionID: id, Accepted: true})
			}
			for _, id := range reject {
				steps = append(steps, walkStep{PositionID: id})
			}
			if len(steps) == 0 {
				return fmt.Errorf("nothing to record: pass --accept and/or --reject")
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			for _, s := range steps {
				if _, ok := ws.graph.Position(s.PositionID); !ok {
					return fmt.Errorf("position not found: %s", s.PositionID)
				}
			}

			var w *models.Walker
			if sessionID != "" {
				if w, err = ws.walker(sessionID); err != nil {
					return err
				}
			} else {
				user = sanitize.Identifier(user)
				if user == "" {
					return fmt.Errorf("--user is required to start a session")
				}
				w = ws.graph.CreateWalker(user)
			}

			reasoning = sanitize.Text(reasoning)
			var suggestions []models.Position
			for _, s := range steps {
				suggestions = ws.graph.WalkStep(w, s.PositionID, s.Accepted, confidence, reasoning)
			}

			matcher, err := ws.settings.Matcher()
			if err != nil {
				return fmt.Errorf("failed to load patterns: %w", err)
			}
			match, matched := matcher.Classify(w)

			if err := ws.save(cmd.Context()); err != nil {
				return err
			}

			if jsonOut {
				out := map[string]interface{}{
					"session_id":    w.SessionID,
					"steps":         steps,
					"path_length":   len(w.Path),
					"suggestions":   suggestions,
					"surprise_rate": w.SurpriseRate(),
				}
				if matched {
					out["canonical_fit"] = match.Pattern.Name
					out["canonical_fit_score"] = match.Score
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session %s: recorded %d step(s), %d position(s) on path\n",
				w.SessionID, len(steps), len(w.Path))
			if matched {
				fmt.Fprintf(cmd.OutOrStdout(), "Canonical fit: %s (%.2f)\n", match.Pattern.Name, match.Score)
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nSuggested next:")
			for _, p := range suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s [%s]\n", p.ID, p.Claim, p.Domain)
			}
			return nil
		},
	}

	cmd.Flags().String("user", "", "User starting a new session")
	cmd.Flags().String("session", "", "Existing session to continue")
	cmd.Flags().StringSlice("accept", nil, "Position IDs to accept")
	cmd.Flags().StringSlice("reject", nil, "Position IDs to reject")
	cmd.Flags().Float64("confidence", 1.0, "Confidence of every recorded choice (0.0-1.0]")
	cmd.Flags().String("reasoning", "", "Reasoning recorded with every choice")

	return cmd
}
