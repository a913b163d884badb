package probing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/models"
)

func stance(id string, d models.Domain) models.Position {
	return models.Stance("Claim about "+id, d, models.WithID(id))
}

func TestPredictWithNoHistoryIsMaximallyUncertain(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("a", models.DomainSocial), stance("b", models.DomainEconomics))
	g.Connect("a", "b", models.EdgeImplies, 0.9)

	pr := NewProber(g)
	w := g.CreateWalker("u")
	for _, p := range g.Positions() {
		pred := pr.PredictPosition(w, p)
		assert.Equal(t, 0.5, pred.PredictedAcceptance)
		assert.Equal(t, 1.0, pred.Uncertainty)
	}
	// Positions outside the graph too.
	pred := pr.PredictPosition(w, stance("elsewhere", models.DomainSocial))
	assert.Equal(t, 1.0, pred.Uncertainty)
}

func TestPredictPosition(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(
		stance("acc1", models.DomainSocial),
		stance("acc2", models.DomainSocial),
		stance("rej", models.DomainSocial),
		stance("target", models.DomainSocial),
		stance("lonely", models.DomainSocial),
	)
	g.Connect("acc1", "target", models.EdgeImplies, 0.8)
	g.Connect("target", "acc2", models.EdgeContradicts, 0.3)
	g.Connect("rej", "target", models.EdgeAssociation, 0.5)

	w := g.CreateWalker("u")
	g.WalkStep(w, "acc1", true, 1, "")
	g.WalkStep(w, "acc2", true, 1, "")
	g.WalkStep(w, "rej", false, 1, "")

	pr := NewProber(g)
	target, _ := g.Position("target")
	pred := pr.PredictPosition(w, target)
	// 0.5 + 0.4*(0.8 - 0.3)
	assert.InDelta(t, 0.7, pred.PredictedAcceptance, 1e-9)
	// three signals
	assert.InDelta(t, 1/1.9, pred.Uncertainty, 1e-9)
	assert.Contains(t, pred.Reasoning, "1 implies edges")
	assert.Contains(t, pred.Reasoning, "1 contradicts edges")

	lonely, _ := g.Position("lonely")
	pred = pr.PredictPosition(w, lonely)
	assert.Equal(t, 0.5, pred.PredictedAcceptance)
	assert.Equal(t, 0.8, pred.Uncertainty)
}

func TestUncertaintyNeverReachesZero(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPosition(stance("target", models.DomainSocial))
	w := g.CreateWalker("u")
	for i := 0; i < 50; i++ {
		id := "src" + strings.Repeat("x", i)
		g.AddPosition(stance(id, models.DomainSocial))
		g.Connect(id, "target", models.EdgeImplies, 1)
		g.WalkStep(w, id, true, 1, "")
	}
	target, _ := g.Position("target")
	pred := NewProber(g).PredictPosition(w, target)
	assert.Greater(t, pred.Uncertainty, 0.0)
	assert.LessOrEqual(t, pred.PredictedAcceptance, 1.0)
}

func TestFindMostInformativePrefersConnectedPositions(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("hub", models.DomainSocial), stance("leaf", models.DomainSocial), stance("isolated", models.DomainSocial))
	for _, id := range []string{"x1", "x2", "x3"} {
		g.AddPosition(stance(id, models.DomainSocial))
		g.Connect(id, "hub", models.EdgeAssociation, 0.5)
	}
	g.Connect("leaf", "hub", models.EdgeAssociation, 0.5)

	w := g.CreateWalker("u")
	pr := NewProber(g)
	best := pr.FindMostInformative(w, 2)
	require.Len(t, best, 2)
	assert.Equal(t, "hub", best[0].PositionID)

	all := pr.FindHighestUncertainty(w, 100)
	assert.Len(t, all, 6)
	assert.Empty(t, pr.FindHighestUncertainty(w, 0))
}

func TestGenerateProbe(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(models.Stance("Taxes are theft", models.DomainEconomics, models.WithID("tax")), stance("hub", models.DomainEconomics))
	g.Connect("tax", "hub", models.EdgeImplies, 0.5)

	pr := NewProber(g)
	w := g.CreateWalker("u")
	probe, ok := pr.GenerateProbe(w)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(probe.Question, "What's your take on:"), probe.Question)
	assert.Equal(t, ProbeDirect, probe.Type)
	assert.NotEmpty(t, probe.ID)

	g.WalkStep(w, "tax", true, 1, "")
	probe, ok = pr.GenerateProbe(w)
	require.True(t, ok)
	assert.Equal(t, "hub", probe.PositionID)
	assert.Contains(t, probe.Question, "Given your view on 'Taxes are theft...'")

	g.WalkStep(w, "hub", true, 1, "")
	_, ok = pr.GenerateProbe(w)
	assert.False(t, ok, "nothing left to probe")
}

func TestGenerateCounterfactualProbe(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("start", models.DomainForeignPolicy), stance("gate", models.DomainForeignPolicy), stance("end", models.DomainForeignPolicy))
	g.AddEdges(models.Mediator("start", "gate", "end"))

	pr := NewProber(g)
	w := g.CreateWalker("u")
	_, ok := pr.GenerateCounterfactualProbe(w, "the US went multipolar")
	assert.False(t, ok)

	g.WalkStep(w, "start", true, 1, "")
	probe, ok := pr.GenerateCounterfactualProbe(w, "the US went multipolar")
	require.True(t, ok)
	assert.Equal(t, "gate", probe.PositionID)
	assert.Equal(t, "Suppose the US went multipolar. Would that change your view on: Claim about gate?", probe.Question)
	assert.Equal(t, ProbeCounterfactual, probe.Type)
}

func TestGeneratePriorityProbe(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("e1", models.DomainEconomics), stance("e2", models.DomainEconomics), stance("s1", models.DomainSocial))

	pr := NewProber(g)
	w := g.CreateWalker("u")
	g.WalkStep(w, "e1", true, 1, "")
	_, ok := pr.GeneratePriorityProbe(w)
	assert.False(t, ok, "needs two accepted positions")

	g.WalkStep(w, "e2", true, 1, "")
	_, ok = pr.GeneratePriorityProbe(w)
	assert.False(t, ok, "same-domain pairs are skipped")

	g.WalkStep(w, "s1", true, 1, "")
	probe, ok := pr.GeneratePriorityProbe(w)
	require.True(t, ok)
	assert.Equal(t, "e1_vs_s1", probe.PositionID)
	assert.Equal(t, 0.9, probe.Prediction.Uncertainty)
	assert.Equal(t, ProbePriority, probe.Type)
}

func TestRecordResponse(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("a", models.DomainSocial), stance("b", models.DomainEconomics))
	g.Connect("a", "b", models.EdgeImplies, 1)

	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "debug")
	defer dl.Close()

	pr := NewProber(g, WithDecisionLogger(dl))
	w := g.CreateWalker("u")
	g.WalkStep(w, "a", true, 1, "")

	probe, ok := pr.GenerateProbe(w)
	require.True(t, ok)
	require.Equal(t, "b", probe.PositionID)
	require.True(t, probe.Prediction.PredictedYes())

	perr, missed := pr.RecordResponse(w, &probe, false)
	require.True(t, missed)
	assert.True(t, probe.Prediction.Tested)
	assert.True(t, probe.Prediction.WasWrong())
	assert.InDelta(t, 0.9, probe.Prediction.ErrorMagnitude(), 1e-9)
	assert.Equal(t, "Implied by 1 accepted positions but rejected", perr.DimensionHint)
	assert.InDelta(t, 1-1/1.3, perr.PredictionConfidence, 1e-9)
	require.Len(t, w.PredictionErrors, 1)

	again := probe
	again.Prediction.Tested = false
	_, missed = pr.RecordResponse(w, &again, true)
	assert.False(t, missed, "correct predictions are not errors")
	assert.Len(t, w.PredictionErrors, 1)
}

func TestDimensionHintFallsBackToDomain(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	g.AddPositions(stance("a", models.DomainSocial), stance("b", models.DomainEconomics))
	g.Connect("b", "a", models.EdgeContradicts, 1)

	pr := NewProber(g)
	w := g.CreateWalker("u")
	g.WalkStep(w, "a", true, 1, "")

	b, _ := g.Position("b")
	probe := ProbeQuestion{PositionID: "b", Prediction: pr.PredictPosition(w, b)}
	require.False(t, probe.Prediction.PredictedYes())
	perr, missed := pr.RecordResponse(w, &probe, true)
	require.True(t, missed)
	assert.Equal(t, "Unexpected response in economics domain", perr.DimensionHint)
}
