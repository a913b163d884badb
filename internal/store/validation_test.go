package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

func issues(errs []ValidationError) map[string][]string {
	out := make(map[string][]string)
	for _, e := range errs {
		out[e.Issue] = append(out[e.Issue], e.RefID)
	}
	return out
}

func TestValidateCleanGraph(t *testing.T) {
	assert.Empty(t, Validate(fixtureGraph(t)), "derives_from targets are traditions, not positions")
}

func TestValidateReportsProblems(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddPosition(models.Stance("claim "+id, models.DomainSocial, models.WithID(id)))
	}
	g.Connect("a", "ghost", models.EdgeImplies, 0.5)
	g.Connect("d", "d", models.EdgeAssociation, 0.5)
	g.Connect("a", "b", models.EdgeImplies, 0.5)
	g.Connect("b", "a", models.EdgeContradicts, 0.5)
	g.Connect("b", "a", models.EdgeImplies, 0.5)
	g.AddEdge(models.Prioritizes("a", "b", ""))
	g.AddEdge(models.Prioritizes("b", "c", ""))
	g.AddEdge(models.Prioritizes("c", "a", ""))

	w := g.CreateWalker("u")
	w.RecordChoice(models.NewChoice("nowhere", true, 1, ""))

	got := issues(Validate(g))
	assert.Equal(t, []string{"ghost", "nowhere"}, got[IssueDangling])
	assert.Equal(t, []string{"d"}, got[IssueSelfReference])
	assert.Equal(t, []string{"a|b"}, got[IssueConflict], "one report per pair")
	assert.Equal(t, []string{"c"}, got[IssueCycle])
}

func TestDetectCycles(t *testing.T) {
	order := []models.Position{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "x"}}
	adj := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"x": {"a"},
	}
	cycles := detectCycles(adj, order)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, cycles)

	assert.Empty(t, detectCycles(map[string][]string{"a": {"b"}, "b": {"c"}}, order))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Subject: "a->b:implies", Field: "target_id", RefID: "b", Issue: IssueDangling}
	assert.Equal(t, "dangling: a->b:implies in target_id references b", e.String())
}
