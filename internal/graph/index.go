package graph

import (
	"slices"

	"github.com/nvandessel/ideograph/internal/models"
)

// edgeEntry pairs a stored edge with its insertion sequence so that
// per-position edge lists can be merged back into global insertion order.
type edgeEntry struct {
	seq  int
	edge *models.Edge
}

// index holds positions and edges keyed by ID, with insertion order and
// per-position adjacency. It is not safe for concurrent use; Graph guards it.
type index struct {
	positions map[string]*models.Position
	posOrder  []string

	edges     map[string]*edgeEntry
	edgeOrder []string
	out       map[string][]*edgeEntry
	in        map[string][]*edgeEntry
}

func newIndex() *index {
	return &index{
		positions: make(map[string]*models.Position),
		edges:     make(map[string]*edgeEntry),
		out:       make(map[string][]*edgeEntry),
		in:        make(map[string][]*edgeEntry),
	}
}

func (ix *index) putPosition(p models.Position) *models.Position {
	stored := p.Clone()
	if _, ok := ix.positions[p.ID]; !ok {
		ix.posOrder = append(ix.posOrder, p.ID)
	}
	ix.positions[p.ID] = &stored
	return &stored
}

func (ix *index) putEdge(e models.Edge) *models.Edge {
	id := e.ID()
	stored := e.Clone()
	if existing, ok := ix.edges[id]; ok {
		*existing.edge = stored
		return existing.edge
	}
	entry := &edgeEntry{seq: len(ix.edgeOrder), edge: &stored}
	ix.edges[id] = entry
	ix.edgeOrder = append(ix.edgeOrder, id)
	ix.out[e.SourceID] = append(ix.out[e.SourceID], entry)
	ix.in[e.TargetID] = append(ix.in[e.TargetID], entry)
	return entry.edge
}

func (ix *index) clone() *index {
	c := newIndex()
	for _, id := range ix.posOrder {
		c.putPosition(*ix.positions[id])
	}
	for _, id := range ix.edgeOrder {
		c.putEdge(*ix.edges[id].edge)
	}
	return c
}

func (ix *index) position(id string) (models.Position, bool) {
	p, ok := ix.positions[id]
	if !ok {
		return models.Position{}, false
	}
	return p.Clone(), true
}

func (ix *index) allPositions() []models.Position {
	out := make([]models.Position, 0, len(ix.posOrder))
	for _, id := range ix.posOrder {
		out = append(out, ix.positions[id].Clone())
	}
	return out
}

func (ix *index) allEdges() []models.Edge {
	out := make([]models.Edge, 0, len(ix.edgeOrder))
	for _, id := range ix.edgeOrder {
		out = append(out, ix.edges[id].edge.Clone())
	}
	return out
}

func copyEdges(entries []*edgeEntry) []models.Edge {
	out := make([]models.Edge, 0, len(entries))
	for _, en := range entries {
		out = append(out, en.edge.Clone())
	}
	return out
}

// touching returns every edge with id as an endpoint in insertion order.
// A self-loop appears once.
func (ix *index) touching(id string) []*edgeEntry {
	merged := make([]*edgeEntry, 0, len(ix.out[id])+len(ix.in[id]))
	merged = append(merged, ix.out[id]...)
	for _, en := range ix.in[id] {
		if en.edge.SourceID != id {
			merged = append(merged, en)
		}
	}
	slices.SortFunc(merged, func(a, b *edgeEntry) int { return a.seq - b.seq })
	return merged
}

// firstEdge returns the earliest-inserted edge source->target of any type.
func (ix *index) firstEdge(source, target string) *models.Edge {
	for _, en := range ix.out[source] {
		if en.edge.TargetID == target {
			return en.edge
		}
	}
	return nil
}

func (ix *index) typedEdge(source, target string, t models.EdgeType) *models.Edge {
	if en, ok := ix.edges[models.EdgeID(source, target, t)]; ok {
		return en.edge
	}
	return nil
}

func (ix *index) resolve(ids []string) []models.Position {
	out := make([]models.Position, 0, len(ids))
	for _, id := range ids {
		if p, ok := ix.positions[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (ix *index) neighborIDs(id string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, en := range ix.touching(id) {
		other := en.edge.Other(id)
		if other == id || seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	return ids
}

func (ix *index) impliesIDs(id string) []string {
	var ids []string
	for _, en := range ix.out[id] {
		if en.edge.Type == models.EdgeImplies {
			ids = append(ids, en.edge.TargetID)
		}
	}
	return ids
}

func (ix *index) impliedByIDs(id string) []string {
	var ids []string
	for _, en := range ix.in[id] {
		if en.edge.Type == models.EdgeImplies {
			ids = append(ids, en.edge.SourceID)
		}
	}
	return ids
}

func (ix *index) contradictsIDs(id string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, en := range ix.touching(id) {
		if en.edge.Type != models.EdgeContradicts {
			continue
		}
		other := en.edge.Other(id)
		if seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	return ids
}

// connected reports whether any edge links a and b in either direction.
func (ix *index) connected(a, b string) bool {
	return ix.firstEdge(a, b) != nil || ix.firstEdge(b, a) != nil
}
