package models

import (
	"fmt"
	"slices"
	"time"
)

// TrajectoryPhase describes the current motion of a walker.
type TrajectoryPhase string

const (
	PhaseEarly         TrajectoryPhase = "early"
	PhaseTransitioning TrajectoryPhase = "transitioning"
	PhaseSettled       TrajectoryPhase = "settled"
	PhaseOscillating   TrajectoryPhase = "oscillating"
)

// surpriseThreshold is the prediction confidence above which a rejected
// prediction counts as a surprise.
const surpriseThreshold = 0.7

// Choice is one decision a walker made at a position.
type Choice struct {
	PositionID string  `json:"position_id" yaml:"position_id"`
	Question   string  `json:"question,omitempty" yaml:"question,omitempty"`
	Accepted   bool    `json:"accepted" yaml:"accepted"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	WasPredicted         bool    `json:"was_predicted,omitempty" yaml:"was_predicted,omitempty"`
	PredictionConfidence float64 `json:"prediction_confidence,omitempty" yaml:"prediction_confidence,omitempty"`

	Timestamp    time.Time     `json:"timestamp" yaml:"timestamp"`
	ResponseTime time.Duration `json:"response_time,omitempty" yaml:"response_time,omitempty"`
}

// NewChoice builds a choice with confidence clamped to [0, 1].
func NewChoice(positionID string, accepted bool, confidence float64, reasoning string) Choice {
	return Choice{
		PositionID: positionID,
		Accepted:   accepted,
		Confidence: Clamp01(confidence),
		Reasoning:  reasoning,
		Timestamp:  time.Now().UTC(),
	}
}

// WasSurprising reports a confident prediction that the walker rejected.
func (c Choice) WasSurprising() bool {
	return c.WasPredicted && c.PredictionConfidence > surpriseThreshold && !c.Accepted
}

// ClusterVisit is one entry in a trajectory's cluster history.
type ClusterVisit struct {
	Cluster string    `json:"cluster" yaml:"cluster"`
	At      time.Time `json:"at" yaml:"at"`
}

// Trajectory is the direction of a walker's motion through idea-space.
type Trajectory struct {
	Pipeline             string             `json:"pipeline" yaml:"pipeline"`
	Phase                TrajectoryPhase    `json:"phase" yaml:"phase"`
	OriginCluster        string             `json:"origin_cluster,omitempty" yaml:"origin_cluster,omitempty"`
	CurrentCluster       string             `json:"current_cluster,omitempty" yaml:"current_cluster,omitempty"`
	PredictedDestination string             `json:"predicted_destination,omitempty" yaml:"predicted_destination,omitempty"`
	Momentum             map[string]float64 `json:"momentum,omitempty" yaml:"momentum,omitempty"`
	Velocity             float64            `json:"velocity" yaml:"velocity"`
	ClusterHistory       []ClusterVisit     `json:"cluster_history,omitempty" yaml:"cluster_history,omitempty"`
}

// UpdateMomentum folds direction into the domain's momentum as an EMA (0.7 old, 0.3 new).
func (t *Trajectory) UpdateMomentum(domain string, direction float64) {
	if t.Momentum == nil {
		t.Momentum = make(map[string]float64)
	}
	t.Momentum[domain] = t.Momentum[domain]*0.7 + direction*0.3
}

// RecordCluster notes entry into cluster at the given time. Re-entering the
// current cluster is a no-op. Velocity is the inverse of the hours spent in
// the previous cluster, floored at six minutes.
func (t *Trajectory) RecordCluster(cluster string, at time.Time) {
	if n := len(t.ClusterHistory); n > 0 && t.ClusterHistory[n-1].Cluster == cluster {
		return
	}
	t.ClusterHistory = append(t.ClusterHistory, ClusterVisit{Cluster: cluster, At: at})
	t.CurrentCluster = cluster
	if t.OriginCluster == "" {
		t.OriginCluster = cluster
	}

	if n := len(t.ClusterHistory); n >= 2 {
		hours := at.Sub(t.ClusterHistory[n-2].At).Hours()
		t.Velocity = 1.0 / max(hours, 0.1)
	}
}

// Summary renders "origin → current → destination (phase, v=x)".
func (t Trajectory) Summary() string {
	orDefault := func(s string) string {
		if s == "" {
			return "?"
		}
		return s
	}
	return fmt.Sprintf("%s → %s → %s (%s, v=%.2f)",
		orDefault(t.OriginCluster), orDefault(t.CurrentCluster), orDefault(t.PredictedDestination), t.Phase, t.Velocity)
}

// PredictionError is a place where the model was wrong about a walker.
type PredictionError struct {
	PositionID           string    `json:"position_id" yaml:"position_id"`
	Predicted            bool      `json:"predicted" yaml:"predicted"`
	Actual               bool      `json:"actual" yaml:"actual"`
	PredictionConfidence float64   `json:"prediction_confidence" yaml:"prediction_confidence"`
	DimensionHint        string    `json:"dimension_hint,omitempty" yaml:"dimension_hint,omitempty"`
	Timestamp            time.Time `json:"timestamp" yaml:"timestamp"`
}

// Severity is the prediction confidence when the prediction was wrong, else 0.
func (e PredictionError) Severity() float64 {
	if e.Predicted == e.Actual {
		return 0
	}
	return e.PredictionConfidence
}

// Walker is one traversal session through the graph.
type Walker struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	SessionID string `json:"session_id" yaml:"session_id"`

	// Path holds first visits only, in order.
	Path    []string `json:"path" yaml:"path"`
	Choices []Choice `json:"choices" yaml:"choices"`

	Trajectory Trajectory `json:"trajectory" yaml:"trajectory"`

	CanonicalFit      string  `json:"canonical_fit,omitempty" yaml:"canonical_fit,omitempty"`
	CanonicalFitScore float64 `json:"canonical_fit_score" yaml:"canonical_fit_score"`

	Aberrations      AberrationProfile `json:"aberrations" yaml:"aberrations"`
	PredictionErrors []PredictionError `json:"prediction_errors,omitempty" yaml:"prediction_errors,omitempty"`

	EdgesStrengthened []string `json:"edges_strengthened,omitempty" yaml:"edges_strengthened,omitempty"`
	EdgesWeakened     []string `json:"edges_weakened,omitempty" yaml:"edges_weakened,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewWalker starts a session for userID. The session ID is "<user>_<unix seconds>".
func NewWalker(userID string, createdAt time.Time) *Walker {
	return &Walker{
		UserID:      userID,
		SessionID:   fmt.Sprintf("%s_%d", userID, createdAt.Unix()),
		Path:        []string{},
		Choices:     []Choice{},
		Trajectory:  Trajectory{Pipeline: "unknown", Phase: PhaseEarly},
		Aberrations: AberrationProfile{WalkerID: userID},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// Visit appends positionID to the path on its first visit.
func (w *Walker) Visit(positionID string) {
	if slices.Contains(w.Path, positionID) {
		return
	}
	w.Path = append(w.Path, positionID)
	w.UpdatedAt = time.Now().UTC()
}

// HasVisited reports whether positionID is on the path.
func (w *Walker) HasVisited(positionID string) bool {
	return slices.Contains(w.Path, positionID)
}

// RecordChoice appends c. A surprising choice is also logged as a prediction error.
func (w *Walker) RecordChoice(c Choice) {
	w.Choices = append(w.Choices, c)
	if c.WasSurprising() {
		w.PredictionErrors = append(w.PredictionErrors, PredictionError{
			PositionID:           c.PositionID,
			Predicted:            true,
			Actual:               c.Accepted,
			PredictionConfidence: c.PredictionConfidence,
			Timestamp:            c.Timestamp,
		})
	}
	w.UpdatedAt = time.Now().UTC()
}

// AddAberration records a deviation in the walker's profile.
func (w *Walker) AddAberration(a Aberration) {
	w.Aberrations.Add(a)
	w.UpdatedAt = time.Now().UTC()
}

// AddPredictionError records a prediction the walker's answer disproved.
// If the latest error is the same miss already logged by RecordChoice, it is
// replaced instead of counted twice.
func (w *Walker) AddPredictionError(e PredictionError) {
	if n := len(w.PredictionErrors); n > 0 {
		last := w.PredictionErrors[n-1]
		if last.PositionID == e.PositionID && last.Actual == e.Actual && last.DimensionHint == "" &&
			len(w.Choices) > 0 && w.Choices[len(w.Choices)-1].PositionID == e.PositionID {
			w.PredictionErrors[n-1] = e
			w.UpdatedAt = time.Now().UTC()
			return
		}
	}
	w.PredictionErrors = append(w.PredictionErrors, e)
	w.UpdatedAt = time.Now().UTC()
}

// StrengthenEdge notes that this walk strengthened edgeID.
func (w *Walker) StrengthenEdge(edgeID string) {
	if !slices.Contains(w.EdgesStrengthened, edgeID) {
		w.EdgesStrengthened = append(w.EdgesStrengthened, edgeID)
	}
}

// WeakenEdge notes that this walk weakened edgeID.
func (w *Walker) WeakenEdge(edgeID string) {
	if !slices.Contains(w.EdgesWeakened, edgeID) {
		w.EdgesWeakened = append(w.EdgesWeakened, edgeID)
	}
}

// Accepted returns the position IDs of accepted choices in choice order.
// A position chosen more than once appears once per acceptance.
func (w *Walker) Accepted() []string {
	var out []string
	for _, c := range w.Choices {
		if c.Accepted {
			out = append(out, c.PositionID)
		}
	}
	return out
}

// Rejected returns the position IDs of rejected choices in choice order.
func (w *Walker) Rejected() []string {
	var out []string
	for _, c := range w.Choices {
		if !c.Accepted {
			out = append(out, c.PositionID)
		}
	}
	return out
}

// AcceptedSet returns the accepted position IDs as a set.
func (w *Walker) AcceptedSet() map[string]bool {
	set := make(map[string]bool)
	for _, c := range w.Choices {
		if c.Accepted {
			set[c.PositionID] = true
		}
	}
	return set
}

// RejectedSet returns the rejected position IDs as a set.
func (w *Walker) RejectedSet() map[string]bool {
	set := make(map[string]bool)
	for _, c := range w.Choices {
		if !c.Accepted {
			set[c.PositionID] = true
		}
	}
	return set
}

// LastChoiceFor returns the most recent choice on positionID.
func (w *Walker) LastChoiceFor(positionID string) (Choice, bool) {
	for i := len(w.Choices) - 1; i >= 0; i-- {
		if w.Choices[i].PositionID == positionID {
			return w.Choices[i], true
		}
	}
	return Choice{}, false
}

// SurpriseRate is the fraction of choices that were surprising.
func (w *Walker) SurpriseRate() float64 {
	if len(w.Choices) == 0 {
		return 0
	}
	n := 0
	for _, c := range w.Choices {
		if c.WasSurprising() {
			n++
		}
	}
	return float64(n) / float64(len(w.Choices))
}

// Clone returns a deep copy of w.
func (w *Walker) Clone() *Walker {
	c := *w
	c.Path = slices.Clone(w.Path)
	c.Choices = slices.Clone(w.Choices)
	c.PredictionErrors = slices.Clone(w.PredictionErrors)
	c.EdgesStrengthened = slices.Clone(w.EdgesStrengthened)
	c.EdgesWeakened = slices.Clone(w.EdgesWeakened)
	c.Aberrations.Aberrations = slices.Clone(w.Aberrations.Aberrations)
	c.Trajectory.ClusterHistory = slices.Clone(w.Trajectory.ClusterHistory)
	if w.Trajectory.Momentum != nil {
		c.Trajectory.Momentum = make(map[string]float64, len(w.Trajectory.Momentum))
		for k, v := range w.Trajectory.Momentum {
			c.Trajectory.Momentum[k] = v
		}
	}
	return &c
}

func (w *Walker) String() string {
	return fmt.Sprintf("Walker(%s: %d positions, %d aberrations)", w.UserID, len(w.Path), len(w.Aberrations.Aberrations))
}
