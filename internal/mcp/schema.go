package mcp

import (
	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/compaction"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/probing"
	"github.com/nvandessel/ideograph/internal/spreading"
	"github.com/nvandessel/ideograph/internal/stance"
	"github.com/nvandessel/ideograph/internal/store"
	"github.com/nvandessel/ideograph/internal/tension"
)

// PositionSummary provides a compact view of a position.
type PositionSummary struct {
	ID         string        `json:"id"`
	Claim      string        `json:"claim"`
	Domain     models.Domain `json:"domain"`
	Level      models.Level  `json:"level"`
	VisitCount int           `json:"visit_count"`
}

func summarize(p models.Position) PositionSummary {
	return PositionSummary{ID: p.ID, Claim: p.Claim, Domain: p.Domain, Level: p.Level, VisitCount: p.VisitCount}
}

func summarizeAll(ps []models.Position) []PositionSummary {
	out := make([]PositionSummary, len(ps))
	for i, p := range ps {
		out[i] = summarize(p)
	}
	return out
}

// WalkStepInput defines the input for ideograph_walk_step tool.
type WalkStepInput struct {
	SessionID  string  `json:"session_id,omitempty" jsonschema:"Existing walker session; omit to start a new one"`
	UserID     string  `json:"user_id,omitempty" jsonschema:"User starting a new session (required without session_id)"`
	PositionID string  `json:"position_id" jsonschema:"Position the walker responded to,required"`
	Accepted   bool    `json:"accepted" jsonschema:"Whether the walker accepted the position"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"Confidence in the choice (0.0-1.0, default: 1.0)"`
	Reasoning  string  `json:"reasoning,omitempty" jsonschema:"Why the walker chose this way"`
}

// WalkStepOutput defines the output for ideograph_walk_step tool.
type WalkStepOutput struct {
	SessionID   string            `json:"session_id" jsonschema:"Walker session the step was recorded on"`
	PositionID  string            `json:"position_id" jsonschema:"Position the step was taken at"`
	Accepted    bool              `json:"accepted" jsonschema:"Recorded choice"`
	PathLength  int               `json:"path_length" jsonschema:"Positions visited so far in this session"`
	Suggestions []PositionSummary `json:"suggestions" jsonschema:"Positions to consider next"`

	// Set when the step answered the session's pending probe.
	ProbeAnswered    bool    `json:"probe_answered,omitempty" jsonschema:"Whether the step answered the pending probe"`
	PredictionMissed bool    `json:"prediction_missed,omitempty" jsonschema:"Whether the probe's prediction was wrong"`
	DimensionHint    string  `json:"dimension_hint,omitempty" jsonschema:"Guess at the hidden dimension behind a missed prediction"`
	SurpriseRate     float64 `json:"surprise_rate" jsonschema:"Fraction of confident predictions the walker has rejected"`

	CanonicalFit      string  `json:"canonical_fit,omitempty" jsonschema:"Best matching canonical trajectory"`
	CanonicalFitScore float64 `json:"canonical_fit_score,omitempty" jsonschema:"Match score of the canonical fit (0.0-1.0)"`

	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// ProbeInput defines the input for ideograph_probe tool.
type ProbeInput struct {
	SessionID string `json:"session_id" jsonschema:"Walker session to probe,required"`
	Kind      string `json:"kind,omitempty" jsonschema:"Probe kind: 'direct', 'counterfactual', or 'priority' (default: 'direct')"`
	Scenario  string `json:"scenario,omitempty" jsonschema:"Hypothetical for counterfactual probes"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Number of uncertain predictions to list (default: 5)"`
}

// ProbeOutput defines the output for ideograph_probe tool.
type ProbeOutput struct {
	SessionID   string                 `json:"session_id" jsonschema:"Walker session that was probed"`
	Probe       *probing.ProbeQuestion `json:"probe,omitempty" jsonschema:"Question to put to the walker; answer it with ideograph_walk_step"`
	Uncertain   []probing.Prediction   `json:"uncertain" jsonschema:"Untested positions the graph is least sure about"`
	Informative []probing.Prediction   `json:"informative" jsonschema:"Untested positions whose answers would teach the most"`
	Untested    int                    `json:"untested" jsonschema:"Number of positions the walker has not visited"`
	Message     string                 `json:"message" jsonschema:"Human-readable result message"`
}

// TensionsInput defines the input for ideograph_tensions tool.
type TensionsInput struct {
	SessionID string `json:"session_id" jsonschema:"Walker session to analyze,required"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Number of challenge suggestions (default: 3)"`
}

// ChallengeSummary is a position worth challenging.
type ChallengeSummary struct {
	Position PositionSummary `json:"position"`
	Score    float64         `json:"score"`
}

// TensionsOutput defines the output for ideograph_tensions tool.
type TensionsOutput struct {
	SessionID   string             `json:"session_id" jsonschema:"Walker session that was analyzed"`
	SGM         float64            `json:"sgm" jsonschema:"Structural balance: (balanced - imbalanced) / determinable triads"`
	Extremeness float64            `json:"extremeness" jsonschema:"Mean absolute attitude (0.0-1.0)"`
	Constraint  float64            `json:"constraint" jsonschema:"Fraction of attitude pairs joined by an edge"`
	Tensions    []tension.Score    `json:"tensions" jsonschema:"Productive tension points, best challenge value first"`
	Challenges  []ChallengeSummary `json:"challenges" jsonschema:"Unvisited positions worth challenging"`
	Message     string             `json:"message" jsonschema:"Human-readable result message"`
}

// SpreadInput defines the input for ideograph_spread tool.
type SpreadInput struct {
	SessionID string `json:"session_id" jsonschema:"Walker session to propagate,required"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Number of predictions (default: 10)"`
}

// SpreadOutput defines the output for ideograph_spread tool.
type SpreadOutput struct {
	SessionID   string             `json:"session_id" jsonschema:"Walker session that was propagated"`
	Predictions []spreading.Result `json:"predictions" jsonschema:"Unvisited positions by signed activation; positive predicts acceptance"`
	Message     string             `json:"message" jsonschema:"Human-readable result message"`
}

// AttractorsInput defines the input for ideograph_attractors tool.
type AttractorsInput struct {
	SessionID   string  `json:"session_id,omitempty" jsonschema:"Also report the basin this walker sits in"`
	MinVisits   int     `json:"min_visits,omitempty" jsonschema:"Minimum visits for an attractor center (default from config)"`
	MinStrength float64 `json:"min_strength,omitempty" jsonschema:"Minimum attractor strength (0.0-1.0, default from config)"`
}

// AttractorsOutput defines the output for ideograph_attractors tool.
type AttractorsOutput struct {
	Attractors []attractors.Attractor `json:"attractors" jsonschema:"Detected attractors, strongest first"`
	Count      int                    `json:"count" jsonschema:"Number of attractors"`
	Basin      *attractors.Attractor  `json:"basin,omitempty" jsonschema:"Attractor whose basin holds most of the walker's path"`
	Message    string                 `json:"message" jsonschema:"Human-readable result message"`
}

// VoidsInput defines the input for ideograph_voids tool.
type VoidsInput struct {
	SessionID    string  `json:"session_id,omitempty" jsonschema:"Also suggest voids for this walker to explore"`
	MinExpected  float64 `json:"min_expected,omitempty" jsonschema:"Minimum expected visitors (default from config)"`
	MinVoidRatio float64 `json:"min_void_ratio,omitempty" jsonschema:"Minimum missing fraction of expected visitors (0.0-1.0, default from config)"`
	Limit        int     `json:"limit,omitempty" jsonschema:"Number of exploration suggestions (default: 3)"`
}

// VoidsOutput defines the output for ideograph_voids tool.
type VoidsOutput struct {
	Voids        []attractors.Void `json:"voids" jsonschema:"Detected voids, emptiest first"`
	Count        int               `json:"count" jsonschema:"Number of voids"`
	Suggested    []attractors.Void `json:"suggested,omitempty" jsonschema:"Voids adjacent to the walker's path"`
	OutsideBasin []PositionSummary `json:"outside_basin,omitempty" jsonschema:"Unvisited positions farthest from what the walker accepted"`
	Message      string            `json:"message" jsonschema:"Human-readable result message"`
}

// ForksInput defines the input for ideograph_forks tool.
type ForksInput struct {
	TargetAccuracy float64 `json:"target_accuracy,omitempty" jsonschema:"Coverage the minimal fork set must reach (0.0-1.0, default: 0.8)"`
	Limit          int     `json:"limit,omitempty" jsonschema:"Number of forks to list by decisiveness (default: all)"`
}

// ForksOutput defines the output for ideograph_forks tool.
type ForksOutput struct {
	Structure    compaction.Structure          `json:"structure" jsonschema:"Shape of the fork tree"`
	Decisiveness []compaction.ForkDecisiveness `json:"decisiveness" jsonschema:"Per-fork decisiveness measured over recorded walkers"`
	MinimalSet   []string                      `json:"minimal_set" jsonschema:"Smallest fork set reaching the target accuracy"`
	Walkers      int                           `json:"walkers" jsonschema:"Number of walkers analyzed"`
	Message      string                        `json:"message" jsonschema:"Human-readable result message"`
}

// GraphInput defines the input for ideograph_graph tool.
type GraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: 'dot', 'json', or 'html' (default: 'json')"`
}

// GraphOutput defines the output for ideograph_graph tool.
type GraphOutput struct {
	Format    string      `json:"format" jsonschema:"Output format used"`
	Graph     interface{} `json:"graph" jsonschema:"Rendered graph (DOT or HTML string, or JSON object)"`
	NodeCount int         `json:"node_count" jsonschema:"Number of positions"`
	EdgeCount int         `json:"edge_count" jsonschema:"Number of edges"`
}

// StanceInput defines the input for ideograph_stance tool.
type StanceInput struct {
	Text     string `json:"text" jsonschema:"Text to extract a stance signature from,required"`
	Headline bool   `json:"headline,omitempty" jsonschema:"Also derive candidate positions, treating text as a headline"`
}

// StanceOutput defines the output for ideograph_stance tool.
type StanceOutput struct {
	Signature     stance.Signature  `json:"signature" jsonschema:"Frames, attributions, sources and inferred positions"`
	DominantFrame string            `json:"dominant_frame,omitempty" jsonschema:"Strongest moral frame"`
	TopDomain     models.Domain     `json:"top_domain,omitempty" jsonschema:"Highest scoring domain"`
	Candidates    []PositionSummary `json:"candidates,omitempty" jsonschema:"Positions derived from the headline (not added to the graph)"`
	Message       string            `json:"message" jsonschema:"Human-readable result message"`
}

// ExportInput defines the input for ideograph_export tool.
type ExportInput struct {
	OutputPath string `json:"output_path" jsonschema:"Destination under ~/.ideograph/exports; .yaml/.yml writes YAML, anything else JSON,required"`
}

// ExportOutput defines the output for ideograph_export tool.
type ExportOutput struct {
	Path      string `json:"path" jsonschema:"Redacted path written"`
	Format    string `json:"format" jsonschema:"Document format written"`
	Positions int    `json:"positions" jsonschema:"Number of positions exported"`
	Edges     int    `json:"edges" jsonschema:"Number of edges exported"`
	Walkers   int    `json:"walkers" jsonschema:"Number of walkers exported"`
	Message   string `json:"message" jsonschema:"Human-readable result message"`
}

// ValidateInput defines the input for ideograph_validate tool.
type ValidateInput struct{}

// ValidateOutput defines the output for ideograph_validate tool.
type ValidateOutput struct {
	Valid      bool                    `json:"valid" jsonschema:"Whether the graph has no consistency issues"`
	ErrorCount int                     `json:"error_count" jsonschema:"Number of issues found"`
	Errors     []store.ValidationError `json:"errors,omitempty" jsonschema:"Issues found"`
	Message    string                  `json:"message" jsonschema:"Human-readable result message"`
}
