package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/probing"
	"github.com/nvandessel/ideograph/internal/sanitize"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Ask a walker about the position the graph is least sure of",
		Long: `Generate the next probe for a walker: a question about the untested
position whose answer would teach the graph the most, with the graph's
prediction of the answer.

With --answer the probe is answered in the same run: the answer is
recorded as a walk step, and a wrong prediction is logged on the walker
with a guess at the hidden dimension behind it.

Examples:
  ideograph probe --session alice_1718000000
  ideograph probe --session alice_1718000000 --kind counterfactual --scenario "a war breaks out"
  ideograph probe --session alice_1718000000 --answer no`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			kind, _ := cmd.Flags().GetString("kind")
			scenario, _ := cmd.Flags().GetString("scenario")
			answer, _ := cmd.Flags().GetString("answer")
			limit, _ := cmd.Flags().GetInt("limit")

			var accepted *bool
			switch answer {
			case "":
			case "yes", "y", "accept":
				v := true
				accepted = &v
			case "no", "n", "reject":
				v := false
				accepted = &v
			default:
				return fmt.Errorf("invalid --answer %q (use 'yes' or 'no')", answer)
			}

			ws, err := openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			w, err := ws.walker(sessionID)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = ws.settings.Probing.UncertainCount
			}

			prober := probing.NewProber(ws.graph, probing.WithDecisionLogger(ws.decisions))
			var (
				probe probing.ProbeQuestion
				ok    bool
			)
			switch probing.ProbeType(kind) {
			case probing.ProbeDirect:
				probe, ok = prober.GenerateProbe(w)
			case probing.ProbeCounterfactual:
				scenario = sanitize.Text(scenario)
				if scenario == "" {
					return fmt.Errorf("--scenario is required for counterfactual probes")
				}
				probe, ok = prober.GenerateCounterfactualProbe(w, scenario)
			case probing.ProbePriority:
				probe, ok = prober.GeneratePriorityProbe(w)
			default:
				return fmt.Errorf("invalid --kind %q (use 'direct', 'counterfactual', or 'priority')", kind)
			}
			uncertain := prober.FindHighestUncertainty(w, limit)

			var (
				missed bool
				perr   models.PredictionError
			)
			if ok && accepted != nil {
				if _, known := ws.graph.Position(probe.PositionID); !known {
					return fmt.Errorf("%s probes compare two positions and cannot be answered yes or no", probe.Type)
				}
				choice := models.NewChoice(probe.PositionID, *accepted, 1.0, "")
				choice.Question = probe.Question
				if probe.Prediction.PredictedYes() {
					choice.WasPredicted = true
					choice.PredictionConfidence = 1 - probe.Prediction.Uncertainty
				}
				ws.graph.Step(w, choice)
				perr, missed = prober.RecordResponse(w, &probe, *accepted)
				if err := ws.save(cmd.Context()); err != nil {
					return err
				}
			}

			if jsonOut {
				out := map[string]interface{}{
					"session_id": w.SessionID,
					"uncertain":  uncertain,
				}
				if ok {
					out["probe"] = probe
				}
				if accepted != nil && ok {
					out["answered"] = *accepted
					out["prediction_missed"] = missed
					if missed {
						out["dimension_hint"] = perr.DimensionHint
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s probe available for session %s.\n", kind, w.SessionID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", probe.Question)
				fmt.Fprintf(cmd.OutOrStdout(), "  position:  %s\n", probe.PositionID)
				fmt.Fprintf(cmd.OutOrStdout(), "  predicted: %.2f acceptance (uncertainty %.2f)\n",
					probe.Prediction.PredictedAcceptance, probe.Prediction.Uncertainty)
				if probe.Prediction.Reasoning != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  because:   %s\n", probe.Prediction.Reasoning)
				}
				if accepted != nil {
					if missed {
						fmt.Fprintf(cmd.OutOrStdout(), "\nPrediction missed. Hint: %s\n", perr.DimensionHint)
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "\nPrediction held.")
					}
				}
			}

			if len(uncertain) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nMost uncertain:")
				for _, p := range uncertain {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s acceptance %.2f, uncertainty %.2f\n",
						p.PositionID, p.PredictedAcceptance, p.Uncertainty)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "Walker session to probe")
	cmd.Flags().String("kind", string(probing.ProbeDirect), "Probe kind: direct, counterfactual, or priority")
	cmd.Flags().String("scenario", "", "Hypothetical for counterfactual probes")
	cmd.Flags().String("answer", "", "Answer the probe now: yes or no")
	cmd.Flags().Int("limit", 0, "Uncertain predictions to list (default from config)")

	return cmd
}
