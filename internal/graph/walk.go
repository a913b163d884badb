package graph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/nvandessel/ideograph/internal/models"
)

const (
	// maxSuggestions caps the positions returned from a walk step.
	maxSuggestions = 5

	// inferredEdgeWeight is the starting weight of an implies edge created
	// from two consecutive acceptances.
	inferredEdgeWeight = 0.3
)

// CreateWalker starts and registers a session for userID. When two sessions
// for the same user start within one second, later ones get a numeric suffix.
func (g *Graph) CreateWalker(userID string) *models.Walker {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := models.NewWalker(userID, g.now())
	base := w.SessionID
	for n := 2; g.walkers[w.SessionID] != nil; n++ {
		w.SessionID = fmt.Sprintf("%s_%d", base, n)
	}
	g.registerLocked(w)
	g.logger.Debug("walker created", "user", userID, "session", w.SessionID)
	return w
}

// RegisterWalker adds an existing walker, replacing any with the same session ID.
func (g *Graph) RegisterWalker(w *models.Walker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerLocked(w)
}

func (g *Graph) registerLocked(w *models.Walker) {
	if _, ok := g.walkers[w.SessionID]; !ok {
		g.walkerOrder = append(g.walkerOrder, w.SessionID)
	}
	g.walkers[w.SessionID] = w
}

// Walker returns the walker registered under sessionID.
func (g *Graph) Walker(sessionID string) (*models.Walker, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.walkers[sessionID]
	return w, ok
}

// Walkers returns every registered walker in registration order.
func (g *Graph) Walkers() []*models.Walker {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.Walker, 0, len(g.walkerOrder))
	for _, id := range g.walkerOrder {
		out = append(out, g.walkers[id])
	}
	return out
}

// WalkersForUser returns the sessions belonging to userID.
func (g *Graph) WalkersForUser(userID string) []*models.Walker {
	var out []*models.Walker
	for _, w := range g.Walkers() {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}

// WalkStep records the walker's choice at positionID, updates the edge from
// the previous path entry, and returns up to five positions to consider next.
// An unknown position is a no-op that returns no suggestions.
func (g *Graph) WalkStep(w *models.Walker, positionID string, accepted bool, confidence float64, reasoning string) []models.Position {
	return g.Step(w, models.NewChoice(positionID, accepted, confidence, reasoning))
}

// Step is WalkStep with a fully populated choice, for callers that carry
// prediction metadata. The whole step is one critical section.
func (g *Graph) Step(w *models.Walker, choice models.Choice) []models.Position {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.ix.positions[choice.PositionID]
	if !ok {
		g.logger.Debug("walk step on unknown position", "position", choice.PositionID, "session", w.SessionID)
		return []models.Position{}
	}

	w.Visit(pos.ID)
	pos.RecordVisit()
	w.RecordChoice(choice)
	if v, ok := pos.Valence.Get(); ok {
		direction := v
		if !choice.Accepted {
			direction = -v
		}
		w.Trajectory.UpdateMomentum(string(pos.Domain), direction)
	}

	g.updateEdgesLocked(w, choice)
	g.updatedAt = g.now()

	return g.suggestLocked(w, pos.ID, choice.Accepted)
}

// updateEdgesLocked applies the learning rule between the previous path entry
// and the chosen position.
func (g *Graph) updateEdgesLocked(w *models.Walker, choice models.Choice) {
	if len(w.Path) < 2 {
		return
	}
	prev := w.Path[len(w.Path)-2]
	cur := choice.PositionID
	rate := g.cfg.LearningRate

	if !choice.Accepted {
		edge := g.ix.typedEdge(prev, cur, models.EdgeImplies)
		if edge == nil {
			return
		}
		edge.Weaken(rate)
		w.WeakenEdge(edge.ID())
		g.traceEdge("edge_weakened", w, edge)
		return
	}

	if edge := g.ix.firstEdge(prev, cur); edge != nil {
		edge.Strengthen(rate)
		w.StrengthenEdge(edge.ID())
		g.traceEdge("edge_strengthened", w, edge)
		return
	}

	edge := g.addEdgeLocked(models.Implies(prev, cur, inferredEdgeWeight))
	w.StrengthenEdge(edge.ID())
	g.traceEdge("edge_created", w, edge)
}

func (g *Graph) traceEdge(event string, w *models.Walker, e *models.Edge) {
	g.logger.Debug(event, "edge", e.ID(), "weight", e.Weight, "session", w.SessionID)
	g.decisions.Log(map[string]any{
		"event":   event,
		"session": w.SessionID,
		"edge":    e.ID(),
		"type":    string(e.Type),
		"weight":  e.Weight,
	})
}

// suggestLocked follows implications after an acceptance or contradictions
// after a rejection, then pads with unvisited neighbors.
func (g *Graph) suggestLocked(w *models.Walker, id string, accepted bool) []models.Position {
	var ids []string
	if accepted {
		ids = g.ix.impliesIDs(id)
	} else {
		ids = g.ix.contradictsIDs(id)
	}
	for _, n := range g.ix.neighborIDs(id) {
		if !w.HasVisited(n) && !slices.Contains(ids, n) {
			ids = append(ids, n)
		}
	}
	out := g.ix.resolve(ids)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// SuggestOutsideBasin returns up to n unvisited positions that no accepted
// position implies, most distant first. Distance only counts one-hop
// adjacency to the accepted set.
func (g *Graph) SuggestOutsideBasin(w *models.Walker, n int) []models.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()

	accepted := uniq(w.Accepted())
	implied := make(map[string]bool)
	for _, a := range accepted {
		for _, id := range g.ix.impliesIDs(a) {
			implied[id] = true
		}
	}

	type candidate struct {
		id       string
		distance float64
	}
	var candidates []candidate
	for _, id := range g.ix.posOrder {
		if w.HasVisited(id) || implied[id] {
			continue
		}
		candidates = append(candidates, candidate{id, g.basinDistanceLocked(id, accepted)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance > candidates[j].distance })

	ids := make([]string, 0, min(max(n, 0), len(candidates)))
	for i := 0; i < cap(ids); i++ {
		ids = append(ids, candidates[i].id)
	}
	return g.ix.resolve(ids)
}

// basinDistanceLocked is 1 - connections/(2*|accepted|), where each accepted
// position contributes at most one connection per direction.
func (g *Graph) basinDistanceLocked(id string, accepted []string) float64 {
	if len(accepted) == 0 {
		return 0.5
	}
	connections := 0
	for _, a := range accepted {
		if g.ix.firstEdge(a, id) != nil {
			connections++
		}
		if g.ix.firstEdge(id, a) != nil {
			connections++
		}
	}
	return 1 - float64(connections)/float64(2*len(accepted))
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
