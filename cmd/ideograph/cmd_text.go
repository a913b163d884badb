package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/profiler"
	"github.com/nvandessel/ideograph/internal/sanitize"
	"github.com/nvandessel/ideograph/internal/stance"
)

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List canonical path patterns or score a walker against them",
		Long: `List the canonical patterns: recognizable paths through the graph
with the positions they require and forbid. With --session, list the
patterns the walker reaches the match threshold on, best first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			matcher, err := ws.settings.Matcher()
			if err != nil {
				return fmt.Errorf("failed to load patterns: %w", err)
			}

			if sessionID != "" {
				w, err := ws.walker(sessionID)
				if err != nil {
					return err
				}
				matches := matcher.AllMatches(w)
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"session_id": w.SessionID,
						"threshold":  ws.settings.Patterns.Threshold,
						"matches":    matches,
					})
				}
				if len(matches) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Session %s reaches no pattern at threshold %.2f.\n", w.SessionID, ws.settings.Patterns.Threshold)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s:\n", w.SessionID)
				for _, m := range matches {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %.2f\n", m.Pattern.Name, m.Score)
				}
				return nil
			}

			list := matcher.Patterns()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), list)
			}
			for _, p := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", p.Name)
				if p.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p.Description)
				}
				if len(p.Required) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  requires: %s\n", strings.Join(p.Required, ", "))
				}
				if len(p.Forbidden) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  forbids:  %s\n", strings.Join(p.Forbidden, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Match this walker against the patterns")

	return cmd
}

func newStanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stance <text...>",
		Short: "Extract framing, attributions and cited authorities from text",
		Long: `Mine a text for surface ideological signals: how the issue is framed,
who is blamed or credited, which authorities are cited, and which known
positions the text echoes. With --headline, also propose a new position
for the text.

Examples:
  ideograph stance "Corporate greed is driving prices up, economists say"
  ideograph stance --headline "Border crisis threatens national security"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			headline, _ := cmd.Flags().GetBool("headline")

			text := sanitize.Text(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			extractor := stance.NewExtractor(ws.graph)
			sig := extractor.Extract(text)

			if jsonOut {
				out := map[string]interface{}{"signature": sig}
				if headline {
					out["candidates"] = extractor.PositionsFromHeadline(text)
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Confidence %.2f\n", sig.Confidence)
			for _, f := range sig.Frames {
				fmt.Fprintf(out, "  frame       %-16s %.2f  %s\n", f.Type, f.Strength, strings.Join(f.Keywords, ", "))
			}
			for _, a := range sig.Attributions {
				fmt.Fprintf(out, "  attribution %-16s %+.2f  %s\n", a.Target, a.Valence, strings.Join(a.Keywords, ", "))
			}
			for _, s := range sig.Sources {
				fmt.Fprintf(out, "  source      %-16s %.2f  %s\n", s.Type, s.Credibility, strings.Join(s.Keywords, ", "))
			}
			if d, ok := sig.TopDomain(); ok {
				fmt.Fprintf(out, "Top domain: %s\n", d)
			}
			if len(sig.Positions) > 0 {
				fmt.Fprintf(out, "Echoes: %s\n", strings.Join(sig.Positions, ", "))
			}
			if headline {
				for _, p := range extractor.PositionsFromHeadline(text) {
					fmt.Fprintf(out, "Candidate position %s [%s]\n", p.ID, p.Domain)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("headline", false, "Propose a new position for the text")

	return cmd
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <dossier>",
		Short: "Infer a public figure's fork stances from their statements",
		Long: `Read a YAML or JSON dossier of statements and infer, per fork, which
pole the figure holds and how confidently. Reports the traditions the
stances belong to, anomalies against them, and dominant framings.

With --walk, the profile is also recorded as a walker (user
"profile:<name>") so the other analyses can run on it.

Dossier format:
  name: Jane Doe
  statements:
    - text: "Free markets allocate resources best."
      source: interview
      date: 2024-05-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			walk, _ := cmd.Flags().GetBool("walk")
			name, _ := cmd.Flags().GetString("name")

			dossier, err := profiler.LoadDossier(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				dossier.Name = name
			}
			dossier.Name = sanitize.Identifier(strings.ReplaceAll(dossier.Name, " ", "_"))
			if dossier.Name == "" {
				return fmt.Errorf("dossier has no name; pass --name")
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			p := profiler.New(ws.tree, profiler.WithLogger(ws.logger)).Profile(dossier.Name, dossier.Statements)

			var sessionID string
			if walk {
				w := p.ToWalker(ws.graph, time.Now())
				ws.graph.RegisterWalker(w)
				if err := ws.save(cmd.Context()); err != nil {
					return err
				}
				sessionID = w.SessionID
			}

			if jsonOut {
				if sessionID == "" {
					return printJSON(cmd.OutOrStdout(), p)
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"profile":    p,
					"session_id": sessionID,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), p.Summary())
			for _, s := range p.Stances() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %s (%.2f, %d statement(s))\n",
					s.ForkID, s.Choice, s.Confidence, len(s.Evidence))
			}
			if sessionID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nRecorded as session %s\n", sessionID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("walk", false, "Record the profile as a walker")
	cmd.Flags().String("name", "", "Override the dossier's name")

	return cmd
}
