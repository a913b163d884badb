package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) error
		input   string
		wantErr error
	}{
		{"known domain", func(s string) error { _, err := ParseDomain(s); return err }, "economics", nil},
		{"unknown domain", func(s string) error { _, err := ParseDomain(s); return err }, "astrology", ErrUnknownDomain},
		{"empty domain", func(s string) error { _, err := ParseDomain(s); return err }, "", ErrUnknownDomain},
		{"known level", func(s string) error { _, err := ParseLevel(s); return err }, "policy", nil},
		{"unknown level", func(s string) error { _, err := ParseLevel(s); return err }, "dogma", ErrUnknownLevel},
		{"known edge type", func(s string) error { _, err := ParseEdgeType(s); return err }, "prioritizes_over", nil},
		{"unknown edge type", func(s string) error { _, err := ParseEdgeType(s); return err }, "loves", ErrUnknownEdgeType},
		{"edge type is case sensitive", func(s string) error { _, err := ParseEdgeType(s); return err }, "IMPLIES", ErrUnknownEdgeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.parse(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestEnumJSONRejectsUnknown(t *testing.T) {
	var e Edge
	err := json.Unmarshal([]byte(`{"source_id":"a","target_id":"b","edge_type":"befriends"}`), &e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEdgeType)

	var p Position
	err = yaml.Unmarshal([]byte("id: x\nclaim: y\ndomain: astrology\n"), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestValence(t *testing.T) {
	assert.False(t, NoValence().IsSet())

	v := NewValence(1.7)
	got, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, 1.0, got)

	data, err := json.Marshal(struct {
		V Valence `json:"v"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":null}`, string(data))

	var out struct {
		V Valence `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":-0.25}`), &out))
	got, ok = out.V.Get()
	assert.True(t, ok)
	assert.Equal(t, -0.25, got)

	require.NoError(t, json.Unmarshal([]byte(`{"v":null}`), &out))
	assert.False(t, out.V.IsSet())

	var y struct {
		V Valence `yaml:"v"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("v: 0.5\n"), &y))
	got, _ = y.V.Get()
	assert.Equal(t, 0.5, got)

	var unset struct {
		V Valence `yaml:"v"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("v: null\n"), &unset))
	assert.False(t, unset.V.IsSet())
}

func TestPositionID(t *testing.T) {
	a := PositionID("Markets allocate resources efficiently")
	b := PositionID("  markets ALLOCATE resources efficiently ")
	assert.Equal(t, a, b, "normalization should make IDs case and whitespace insensitive")
	assert.True(t, strings.HasPrefix(a, "mark_allo_reso_"), a)
	assert.Len(t, a[strings.LastIndex(a, "_")+1:], 12)

	p := Stance("Markets allocate resources efficiently", DomainEconomics)
	assert.Equal(t, a, p.ID)
	assert.Equal(t, LevelPosition, p.Level)
	assert.Equal(t, 0.5, p.CanonicalScore)

	explicit := Axiom("Hierarchy is natural", DomainSocial, WithID("hier"))
	assert.Equal(t, "hier", explicit.ID)
	assert.Equal(t, LevelAxiom, explicit.Level)
}

func TestPositionMutators(t *testing.T) {
	p := Policy("Raise the minimum wage", "")
	assert.Equal(t, DomainUncategorized, p.Domain)

	p.RecordVisit()
	p.RecordVisit()
	assert.Equal(t, 2, p.VisitCount)

	p.UpdateCanonicalScore(3)
	assert.Equal(t, 1.0, p.CanonicalScore)
	p.UpdateCanonicalScore(-1)
	assert.Equal(t, 0.0, p.CanonicalScore)

	src := Source{URL: "https://example.org/a", Text: "headline"}
	assert.True(t, p.AddSource(src))
	assert.False(t, p.AddSource(src))
	assert.Len(t, p.Sources, 1)
}

func TestEdgeUpdatesStayBounded(t *testing.T) {
	e := Implies("a", "b", 0.5)
	assert.Equal(t, "a->b:implies", e.ID())

	for i := 0; i < 200; i++ {
		e.Strengthen(0.9)
		e.RecordTension(0.5)
		require.GreaterOrEqual(t, e.Weight, 0.0)
		require.LessOrEqual(t, e.Weight, 1.0)
		require.LessOrEqual(t, e.Tension, 1.0)
	}
	for i := 0; i < 200; i++ {
		e.Weaken(0.9)
		require.GreaterOrEqual(t, e.Weight, 0.0)
	}
	assert.Equal(t, 200, e.CoOccurrence)

	w := NewEdge("a", "b", EdgeAssociation, 7)
	assert.Equal(t, 1.0, w.Weight)
}

func TestEdgeStrengthenWeaken(t *testing.T) {
	e := Implies("a", "b", 0.5)
	e.Strengthen(0.1)
	assert.InDelta(t, 0.55, e.Weight, 1e-9)
	e.Weaken(0.1)
	assert.InDelta(t, 0.495, e.Weight, 1e-9)
}

func TestEdgeEvidence(t *testing.T) {
	e := Contradicts("a", "b", 0.5)
	e.AddEvidence("https://example.org/1")
	e.AddEvidence("https://example.org/1")
	assert.Equal(t, 1, e.EvidenceCount)
	assert.InDelta(t, 0.4, e.Confidence, 1e-9)

	for i := 0; i < 20; i++ {
		e.AddEvidence(strings.Repeat("x", i+1))
	}
	assert.Equal(t, 1.0, e.Confidence)
}

func TestEdgeFactories(t *testing.T) {
	p := Prioritizes("liberty", "security", "wartime")
	assert.Equal(t, EdgePrioritizesOver, p.Type)
	assert.Equal(t, "wartime", p.PriorityContext)

	a, b := Collider("lib", "aclu", "free_speech")
	assert.Equal(t, "free_speech", a.TargetID)
	assert.Equal(t, "free_speech", b.TargetID)

	m1, m2 := Mediator("mainstream", "redpill", "fringe")
	assert.Equal(t, "redpill", m1.TargetID)
	assert.Equal(t, "redpill", m2.SourceID)
}

func TestWalkerPathHasNoDuplicates(t *testing.T) {
	w := NewWalker("alice", time.Unix(1700000000, 0))
	assert.Equal(t, "alice_1700000000", w.SessionID)

	for _, id := range []string{"p1", "p2", "p1", "p3", "p2"} {
		w.Visit(id)
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, w.Path)
}

func TestWalkerChoices(t *testing.T) {
	w := NewWalker("bob", time.Now())
	w.RecordChoice(NewChoice("p1", true, 0.8, ""))
	w.RecordChoice(NewChoice("p2", false, 1.4, "no"))

	surprise := NewChoice("p3", false, 0.5, "")
	surprise.WasPredicted = true
	surprise.PredictionConfidence = 0.9
	w.RecordChoice(surprise)

	assert.Equal(t, []string{"p1"}, w.Accepted())
	assert.Equal(t, []string{"p2", "p3"}, w.Rejected())
	assert.Equal(t, 1.0, w.Choices[1].Confidence)
	require.Len(t, w.PredictionErrors, 1)
	assert.Equal(t, "p3", w.PredictionErrors[0].PositionID)
	assert.InDelta(t, 0.9, w.PredictionErrors[0].Severity(), 1e-9)
	assert.InDelta(t, 1.0/3, w.SurpriseRate(), 1e-9)

	c, ok := w.LastChoiceFor("p2")
	assert.True(t, ok)
	assert.Equal(t, "no", c.Reasoning)
	_, ok = w.LastChoiceFor("missing")
	assert.False(t, ok)

	w.StrengthenEdge("e1")
	w.StrengthenEdge("e1")
	assert.Equal(t, []string{"e1"}, w.EdgesStrengthened)
}

func TestAddPredictionErrorEnrichesSurprise(t *testing.T) {
	w := NewWalker("cara", time.Now())
	surprise := NewChoice("p1", false, 1, "")
	surprise.WasPredicted = true
	surprise.PredictionConfidence = 0.9
	w.RecordChoice(surprise)
	require.Len(t, w.PredictionErrors, 1)

	w.AddPredictionError(PredictionError{PositionID: "p1", Predicted: true, PredictionConfidence: 0.9, DimensionHint: "hidden"})
	require.Len(t, w.PredictionErrors, 1)
	assert.Equal(t, "hidden", w.PredictionErrors[0].DimensionHint)

	w.AddPredictionError(PredictionError{PositionID: "p2", Predicted: false, Actual: true})
	assert.Len(t, w.PredictionErrors, 2)
}

func TestTrajectory(t *testing.T) {
	var tr Trajectory
	tr.UpdateMomentum("economics", 1)
	tr.UpdateMomentum("economics", 1)
	assert.InDelta(t, 0.51, tr.Momentum["economics"], 1e-9)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.RecordCluster("left", start)
	tr.RecordCluster("left", start.Add(time.Hour))
	assert.Len(t, tr.ClusterHistory, 1)
	assert.Equal(t, "left", tr.OriginCluster)

	tr.RecordCluster("postleft", start.Add(2*time.Hour))
	assert.InDelta(t, 0.5, tr.Velocity, 1e-9)
	assert.Equal(t, "postleft", tr.CurrentCluster)

	tr.RecordCluster("right", start.Add(2*time.Hour+time.Minute))
	assert.InDelta(t, 10.0, tr.Velocity, 1e-9, "dwell time is floored at 0.1h")
}

func TestAberrationProfile(t *testing.T) {
	p := AberrationProfile{WalkerID: "w"}
	p.Add(Deletion("economics", "free_markets"))
	p.Add(Insertion("technology", "bitcoin"))
	inv := Inversion("economics", "a->b:implies")
	inv.Rarity = 0.9
	p.Add(inv)

	assert.Equal(t, "economics", p.PrimaryRegion)
	assert.Equal(t, AberrationDeletion, p.DominantType)
	assert.InDelta(t, (0.5+0.5+0.9)/3*(0.5+0.5*0.3), p.Uniqueness, 1e-9)
	assert.Len(t, p.ByRegion("economics"), 2)
	assert.Len(t, p.ByType(AberrationInsertion), 1)
	assert.Equal(t, "w", p.Aberrations[0].WalkerID)

	assert.Equal(t, "deletion:economics:none", p.Aberrations[0].ID())
	assert.True(t, strings.HasPrefix(p.Aberrations[2].Signature(), "[!] economics: Inverted edge"))

	tl := Translocation("social", "p9", "economics")
	assert.Equal(t, "translocation:social:p9", tl.ID())
}
