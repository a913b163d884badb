package store

import (
	"fmt"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// Validation issue kinds.
const (
	IssueDangling      = "dangling"
	IssueSelfReference = "self-reference"
	IssueConflict      = "conflict"
	IssueCycle         = "cycle"
)

// ValidationError describes a graph consistency issue.
type ValidationError struct {
	Subject string `json:"subject"` // edge id, session id or position id
	Field   string `json:"field"`   // "source_id", "target_id", "choices", "prioritizes_over"
	RefID   string `json:"ref_id"`  // the problematic reference
	Issue   string `json:"issue"`
}

// String returns a human-readable description of the validation error.
func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s in %s references %s", e.Issue, e.Subject, e.Field, e.RefID)
}

// Validate checks a graph for consistency. It reports:
//   - edges whose endpoints are not positions (derives_from targets are
//     traditions and are exempt)
//   - edges from a position to itself
//   - pairs that both imply and contradict each other
//   - cycles in prioritizes_over, which no ranking can satisfy
//   - walker choices on unknown positions
//
// Nothing here blocks loading; the graph stays usable.
func Validate(src graph.Source) []ValidationError {
	snap := src.Snapshot()
	var errs []ValidationError

	known := func(id string) bool {
		_, ok := snap.Position(id)
		return ok
	}

	type pair struct{ a, b string }
	implies := make(map[pair]bool)
	contradicts := make(map[pair]bool)
	priority := make(map[string][]string)

	for _, e := range snap.Edges() {
		id := e.ID()
		if e.SourceID == e.TargetID {
			errs = append(errs, ValidationError{Subject: id, Field: "target_id", RefID: e.TargetID, Issue: IssueSelfReference})
		}
		if !known(e.SourceID) {
			errs = append(errs, ValidationError{Subject: id, Field: "source_id", RefID: e.SourceID, Issue: IssueDangling})
		}
		if e.Type != models.EdgeDerivesFrom && !known(e.TargetID) {
			errs = append(errs, ValidationError{Subject: id, Field: "target_id", RefID: e.TargetID, Issue: IssueDangling})
		}

		p := pair{e.SourceID, e.TargetID}
		if p.b < p.a {
			p = pair{p.b, p.a}
		}
		switch e.Type {
		case models.EdgeImplies:
			implies[p] = true
		case models.EdgeContradicts:
			contradicts[p] = true
		case models.EdgePrioritizesOver:
			priority[e.SourceID] = append(priority[e.SourceID], e.TargetID)
		}
	}

	for _, e := range snap.Edges() {
		if e.Type != models.EdgeImplies {
			continue
		}
		p := pair{e.SourceID, e.TargetID}
		if p.b < p.a {
			p = pair{p.b, p.a}
		}
		if contradicts[p] && implies[p] {
			errs = append(errs, ValidationError{Subject: e.ID(), Field: "edge_type", RefID: p.a + "|" + p.b, Issue: IssueConflict})
			delete(implies, p)
		}
	}

	for _, cycle := range detectCycles(priority, snap.Positions()) {
		errs = append(errs, ValidationError{Subject: cycle[0], Field: "prioritizes_over", RefID: cycle[len(cycle)-1], Issue: IssueCycle})
	}

	for _, w := range snap.Walkers {
		for _, c := range w.Choices {
			if !known(c.PositionID) {
				errs = append(errs, ValidationError{Subject: w.SessionID, Field: "choices", RefID: c.PositionID, Issue: IssueDangling})
			}
		}
	}
	return errs
}

// detectCycles detects cycles in a directed graph using DFS with color
// marking, starting from nodes in position order so results are stable.
// Each cycle is returned as the node sequence that closes it.
func detectCycles(adj map[string][]string, order []models.Position) [][]string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = 1
		stack = append(stack, node)
		for _, next := range adj[node] {
			switch color[next] {
			case 1:
				// Back edge: the cycle is the stack from next onward.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle := append([]string(nil), stack[i:]...)
						cycles = append(cycles, cycle)
						break
					}
				}
			case 0:
				dfs(next)
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = 2
	}

	for _, p := range order {
		if color[p.ID] == 0 && len(adj[p.ID]) > 0 {
			dfs(p.ID)
		}
	}
	return cycles
}
