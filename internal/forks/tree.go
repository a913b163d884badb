package forks

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nvandessel/ideograph/internal/models"
)

// ErrDuplicateFork is returned when a tree is built with the same fork ID twice.
var ErrDuplicateFork = errors.New("duplicate fork")

// GraphBuilder is the subset of the graph a tree writes into.
type GraphBuilder interface {
	AddPosition(p models.Position) models.Position
	AddEdge(e models.Edge) models.Edge
}

// Tree is an ordered set of forks linked by parent IDs.
type Tree struct {
	order []string
	forks map[string]*Fork
}

// NewTree builds a tree from forks in order. Each fork with a parent in the
// tree is linked into that parent's children.
func NewTree(forks ...Fork) (*Tree, error) {
	t := &Tree{forks: make(map[string]*Fork, len(forks))}
	for _, f := range forks {
		f = f.Clone()
		f.normalize()
		if _, ok := t.forks[f.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFork, f.ID)
		}
		t.order = append(t.order, f.ID)
		t.forks[f.ID] = &f
	}
	t.link()
	return t, nil
}

func (t *Tree) link() {
	for _, id := range t.order {
		f := t.forks[id]
		if parent, ok := t.forks[f.ParentForkID]; ok && !slices.Contains(parent.ChildForks, id) {
			parent.ChildForks = append(parent.ChildForks, id)
		}
	}
}

// Merge returns a new tree holding t's forks followed by other's.
func (t *Tree) Merge(other *Tree) (*Tree, error) {
	return NewTree(append(t.Forks(), other.Forks()...)...)
}

// Len returns the number of forks.
func (t *Tree) Len() int { return len(t.order) }

// Fork returns the fork with the given ID.
func (t *Tree) Fork(id string) (Fork, bool) {
	f, ok := t.forks[id]
	if !ok {
		return Fork{}, false
	}
	return f.Clone(), true
}

// Forks returns every fork in tree order.
func (t *Tree) Forks() []Fork {
	out := make([]Fork, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.forks[id].Clone())
	}
	return out
}

// IDs returns every fork ID in tree order.
func (t *Tree) IDs() []string { return slices.Clone(t.order) }

// ByLevel returns the forks at level, in tree order.
func (t *Tree) ByLevel(level Level) []Fork {
	var out []Fork
	for _, id := range t.order {
		if f := t.forks[id]; f.Level == level {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Children returns the forks that follow id.
func (t *Tree) Children(id string) []Fork {
	f, ok := t.forks[id]
	if !ok {
		return nil
	}
	var out []Fork
	for _, cid := range f.ChildForks {
		if c, ok := t.forks[cid]; ok {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Descendants returns every fork below id, depth first.
func (t *Tree) Descendants(id string) []Fork {
	var out []Fork
	seen := map[string]bool{id: true}
	var walk func(string)
	walk = func(id string) {
		for _, c := range t.Children(id) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			walk(c.ID)
		}
	}
	walk(id)
	return out
}

// PathToRoot returns id and its ancestors, nearest first. A parent cycle
// stops at the first repeated fork.
func (t *Tree) PathToRoot(id string) []Fork {
	var out []Fork
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		f, ok := t.forks[id]
		if !ok {
			break
		}
		seen[id] = true
		out = append(out, f.Clone())
		id = f.ParentForkID
	}
	return out
}

// Depth is the number of ancestors of id; roots have depth 0.
func (t *Tree) Depth(id string) int {
	return max(len(t.PathToRoot(id))-1, 0)
}

// MaxDepth is the deepest fork's depth.
func (t *Tree) MaxDepth() int {
	d := 0
	for _, id := range t.order {
		d = max(d, t.Depth(id))
	}
	return d
}

// Roots returns forks without a parent in the tree.
func (t *Tree) Roots() []Fork {
	var out []Fork
	for _, id := range t.order {
		f := t.forks[id]
		if _, ok := t.forks[f.ParentForkID]; !ok {
			out = append(out, f.Clone())
		}
	}
	return out
}

// FindByPosition returns the fork and pole a position ID belongs to.
func (t *Tree) FindByPosition(positionID string) (Fork, Pole, bool) {
	for _, id := range t.order {
		f := t.forks[id]
		if p, ok := f.PoleOf(positionID); ok {
			return f.Clone(), p, true
		}
	}
	return Fork{}, "", false
}

// ToGraph adds both poles of every fork with their contradiction edge, then
// joins each parent pole to each child pole with a weak implies edge.
// It returns the number of positions added.
func (t *Tree) ToGraph(g GraphBuilder) int {
	n := 0
	for _, id := range t.order {
		f := t.forks[id]
		a, b := f.Positions()
		g.AddPosition(a)
		g.AddPosition(b)
		g.AddEdge(f.Edge())
		n += 2
	}
	for _, id := range t.order {
		f := t.forks[id]
		parent, ok := t.forks[f.ParentForkID]
		if !ok {
			continue
		}
		for _, pp := range []Pole{PoleA, PoleB} {
			for _, cp := range []Pole{PoleA, PoleB} {
				g.AddEdge(models.Implies(parent.PoleID(pp), f.PoleID(cp), parentEdgeWeight))
			}
		}
	}
	return n
}

// Questionnaire returns the forks at start followed by their children.
func (t *Tree) Questionnaire(start Level) []Fork {
	starting := t.ByLevel(start)
	out := slices.Clone(starting)
	for _, f := range starting {
		out = append(out, t.Children(f.ID)...)
	}
	return out
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree(%d forks)", len(t.order))
}
