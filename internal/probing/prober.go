// Package probing predicts a walker's stance on untested positions from graph
// structure and the walker's history, picks the probes that would teach the
// most, and records where predictions break. A broken prediction is a hint
// of a hidden dimension the graph does not yet model.
package probing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/models"
)

// ProbeType is the shape of a probe question.
type ProbeType string

const (
	ProbeDirect         ProbeType = "direct"
	ProbeCounterfactual ProbeType = "counterfactual"
	ProbePriority       ProbeType = "priority"
)

// Default result counts.
const (
	DefaultUncertainCount   = 5
	DefaultInformativeCount = 3
)

// Prediction is a guess at whether a walker will accept a position.
type Prediction struct {
	PositionID          string  `json:"position_id"`
	PredictedAcceptance float64 `json:"predicted_acceptance"`
	Uncertainty         float64 `json:"uncertainty"`
	Reasoning           string  `json:"reasoning"`

	Tested bool  `json:"tested"`
	Actual *bool `json:"actual,omitempty"`
}

// PredictedYes reports whether the prediction leans toward acceptance.
func (p Prediction) PredictedYes() bool { return p.PredictedAcceptance > 0.5 }

// WasWrong reports whether a tested prediction landed on the wrong side of 0.5.
func (p Prediction) WasWrong() bool {
	if !p.Tested || p.Actual == nil {
		return false
	}
	return p.PredictedYes() != *p.Actual
}

// ErrorMagnitude is |predicted - actual| for a tested prediction, else 0.
func (p Prediction) ErrorMagnitude() float64 {
	if !p.Tested || p.Actual == nil {
		return 0
	}
	actual := 0.0
	if *p.Actual {
		actual = 1
	}
	return math.Abs(p.PredictedAcceptance - actual)
}

// ProbeQuestion is a question to put to a walker.
type ProbeQuestion struct {
	ID         string     `json:"id"`
	PositionID string     `json:"position_id"`
	Question   string     `json:"question"`
	Prediction Prediction `json:"prediction"`
	Type       ProbeType  `json:"type"`
}

// Prober generates probes against snapshots of a graph.
type Prober struct {
	src       graph.Source
	decisions *logging.DecisionLogger
}

// Option customizes a Prober.
type Option func(*Prober)

// WithDecisionLogger traces missed predictions.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(p *Prober) { p.decisions = dl }
}

// NewProber creates a prober.
func NewProber(src graph.Source, opts ...Option) *Prober {
	p := &Prober{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PredictPosition estimates the walker's acceptance of pos.
func (pr *Prober) PredictPosition(w *models.Walker, pos models.Position) Prediction {
	return predict(pr.src.Snapshot(), w, pos)
}

// predict combines three signals: implies edges from accepted positions push
// toward acceptance, contradicts edges with accepted positions push toward
// rejection, and edges from rejected positions only add certainty.
func predict(s *graph.Snapshot, w *models.Walker, pos models.Position) Prediction {
	accepted := w.AcceptedSet()
	rejected := w.RejectedSet()

	if len(accepted) == 0 && len(rejected) == 0 {
		return Prediction{PositionID: pos.ID, PredictedAcceptance: 0.5, Uncertainty: 1.0, Reasoning: "No prior data"}
	}

	var impliesScore, contradictsScore float64
	var impliesCount, contradictsCount int
	for _, e := range s.EdgesTo(pos.ID) {
		if e.Type == models.EdgeImplies && accepted[e.SourceID] {
			impliesScore += e.Weight
			impliesCount++
		}
	}
	for _, e := range s.EdgesTouching(pos.ID) {
		if e.Type == models.EdgeContradicts && accepted[e.Other(pos.ID)] {
			contradictsScore += e.Weight
			contradictsCount++
		}
	}
	rejectedSimilar := 0
	for id := range rejected {
		if _, ok := s.GetEdge(id, pos.ID); ok {
			rejectedSimilar++
		}
	}

	total := impliesCount + contradictsCount + rejectedSimilar
	if total == 0 {
		return Prediction{PositionID: pos.ID, PredictedAcceptance: 0.5, Uncertainty: 0.8, Reasoning: "No related positions tested"}
	}

	acceptancePush := impliesScore / float64(max(impliesCount, 1))
	rejectionPush := contradictsScore / float64(max(contradictsCount, 1))
	predicted := models.Clamp01(0.5 + 0.4*(acceptancePush-rejectionPush))

	var reasons []string
	if impliesCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d implies edges suggest acceptance", impliesCount))
	}
	if contradictsCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d contradicts edges suggest rejection", contradictsCount))
	}
	reasoning := strings.Join(reasons, "; ")
	if reasoning == "" {
		reasoning = "Based on graph structure"
	}

	return Prediction{
		PositionID:          pos.ID,
		PredictedAcceptance: predicted,
		Uncertainty:         1 / (1 + 0.3*float64(total)),
		Reasoning:           reasoning,
	}
}

// UntestedPositions returns positions not on the walker's path.
func (pr *Prober) UntestedPositions(w *models.Walker) []models.Position {
	return untested(pr.src.Snapshot(), w)
}

func untested(s *graph.Snapshot, w *models.Walker) []models.Position {
	var out []models.Position
	for _, p := range s.Positions() {
		if !w.HasVisited(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// FindHighestUncertainty returns the n untested predictions with the highest uncertainty.
func (pr *Prober) FindHighestUncertainty(w *models.Walker, n int) []Prediction {
	s := pr.src.Snapshot()
	var preds []Prediction
	for _, p := range untested(s, w) {
		preds = append(preds, predict(s, w, p))
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Uncertainty > preds[j].Uncertainty })
	return preds[:min(max(n, 0), len(preds))]
}

// FindMostInformative ranks untested positions by uncertainty * ln(1 + degree),
// favoring positions that are both unresolved and well connected.
func (pr *Prober) FindMostInformative(w *models.Walker, n int) []Prediction {
	return mostInformative(pr.src.Snapshot(), w, n)
}

func mostInformative(s *graph.Snapshot, w *models.Walker, n int) []Prediction {
	type scored struct {
		pred  Prediction
		value float64
	}
	var all []scored
	for _, p := range untested(s, w) {
		pred := predict(s, w, p)
		degree := len(s.EdgesFrom(p.ID)) + len(s.EdgesTo(p.ID))
		all = append(all, scored{pred, pred.Uncertainty * math.Log1p(float64(degree))})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].value > all[j].value })

	out := make([]Prediction, 0, min(max(n, 0), len(all)))
	for i := 0; i < len(all) && i < n; i++ {
		out = append(out, all[i].pred)
	}
	return out
}

// GenerateProbe phrases a direct question about the most informative
// untested position, referencing the walker's latest step when there is one.
func (pr *Prober) GenerateProbe(w *models.Walker) (ProbeQuestion, bool) {
	s := pr.src.Snapshot()
	best := mostInformative(s, w, 1)
	if len(best) == 0 {
		return ProbeQuestion{}, false
	}
	pos, ok := s.Position(best[0].PositionID)
	if !ok {
		return ProbeQuestion{}, false
	}

	question := fmt.Sprintf("What's your take on: %s?", pos.Claim)
	if n := len(w.Path); n > 0 {
		if last, ok := s.Position(w.Path[n-1]); ok {
			question = fmt.Sprintf("Given your view on '%s...', what do you think about: %s?", truncate(last.Claim, 50), pos.Claim)
		}
	}
	return ProbeQuestion{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Question:   question,
		Prediction: best[0],
		Type:       ProbeDirect,
	}, true
}

// GenerateCounterfactualProbe looks for an unvisited position reached from an
// accepted one through a mediator or confounder edge and asks whether the
// scenario would change the walker's view of it.
func (pr *Prober) GenerateCounterfactualProbe(w *models.Walker, scenario string) (ProbeQuestion, bool) {
	s := pr.src.Snapshot()
	for _, id := range uniq(w.Accepted()) {
		for _, e := range s.EdgesFrom(id) {
			if e.Type != models.EdgeMediator && e.Type != models.EdgeConfounder {
				continue
			}
			target, ok := s.Position(e.TargetID)
			if !ok || w.HasVisited(target.ID) {
				continue
			}
			return ProbeQuestion{
				ID:         uuid.NewString(),
				PositionID: target.ID,
				Question:   fmt.Sprintf("Suppose %s. Would that change your view on: %s?", scenario, target.Claim),
				Prediction: predict(s, w, target),
				Type:       ProbeCounterfactual,
			}, true
		}
	}
	return ProbeQuestion{}, false
}

// GeneratePriorityProbe asks the walker to rank the first pair of accepted
// positions from different domains.
func (pr *Prober) GeneratePriorityProbe(w *models.Walker) (ProbeQuestion, bool) {
	s := pr.src.Snapshot()
	accepted := uniq(w.Accepted())
	if len(accepted) < 2 {
		return ProbeQuestion{}, false
	}
	for i, aID := range accepted {
		a, ok := s.Position(aID)
		if !ok {
			continue
		}
		for _, bID := range accepted[i+1:] {
			b, ok := s.Position(bID)
			if !ok || a.Domain == b.Domain {
				continue
			}
			id := a.ID + "_vs_" + b.ID
			return ProbeQuestion{
				ID:         uuid.NewString(),
				PositionID: id,
				Question:   fmt.Sprintf("When these conflict, which do you prioritize?\nA: %s\nB: %s", a.Claim, b.Claim),
				Prediction: Prediction{PositionID: id, PredictedAcceptance: 0.5, Uncertainty: 0.9, Reasoning: "Priority probe"},
				Type:       ProbePriority,
			}, true
		}
	}
	return ProbeQuestion{}, false
}

// RecordResponse marks the probe's prediction as tested. A wrong prediction
// is appended to the walker's prediction errors and returned.
func (pr *Prober) RecordResponse(w *models.Walker, probe *ProbeQuestion, accepted bool) (models.PredictionError, bool) {
	probe.Prediction.Tested = true
	probe.Prediction.Actual = &accepted
	if !probe.Prediction.WasWrong() {
		return models.PredictionError{}, false
	}

	perr := models.PredictionError{
		PositionID:           probe.PositionID,
		Predicted:            probe.Prediction.PredictedYes(),
		Actual:               accepted,
		PredictionConfidence: 1 - probe.Prediction.Uncertainty,
		DimensionHint:        pr.inferDimension(w, probe.PositionID),
		Timestamp:            time.Now().UTC(),
	}
	w.AddPredictionError(perr)

	pr.decisions.Log(map[string]any{
		"event":      "prediction_missed",
		"session":    w.SessionID,
		"position":   probe.PositionID,
		"predicted":  probe.Prediction.PredictedAcceptance,
		"actual":     accepted,
		"confidence": perr.PredictionConfidence,
		"hint":       perr.DimensionHint,
	})
	return perr, true
}

// inferDimension guesses what hidden dimension caused a miss.
func (pr *Prober) inferDimension(w *models.Walker, positionID string) string {
	s := pr.src.Snapshot()
	pos, ok := s.Position(positionID)
	if !ok {
		return ""
	}
	accepted := w.AcceptedSet()
	conflicting := 0
	for _, e := range s.EdgesTo(pos.ID) {
		if e.Type == models.EdgeImplies && accepted[e.SourceID] {
			conflicting++
		}
	}
	if conflicting > 0 {
		return fmt.Sprintf("Implied by %d accepted positions but rejected", conflicting)
	}
	return fmt.Sprintf("Unexpected response in %s domain", pos.Domain)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
