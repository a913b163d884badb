package compaction

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/models"
)

//go:embed archetypes.yaml
var archetypesYAML []byte

// ForkChoice is one defining choice of an archetype.
type ForkChoice struct {
	ForkID string     `json:"fork_id"`
	Pole   forks.Pole `json:"pole"`
}

// ForkChoices is an ordered fork-to-pole mapping. In YAML it is written as a
// mapping and keeps its authoring order.
type ForkChoices []ForkChoice

// UnmarshalYAML decodes a mapping of fork id to "a" or "b".
func (fc *ForkChoices) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fork_choices must be a mapping", node.Line)
	}
	out := make(ForkChoices, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		pole := forks.Pole(v.Value)
		if pole != forks.PoleA && pole != forks.PoleB {
			return fmt.Errorf("line %d: fork %q: pole must be a or b, got %q", v.Line, k.Value, v.Value)
		}
		out = append(out, ForkChoice{ForkID: k.Value, Pole: pole})
	}
	*fc = out
	return nil
}

// Archetype is a named pattern of political thinking defined by its choices
// on decisive forks.
type Archetype struct {
	Name            string      `json:"name" yaml:"name"`
	Description     string      `json:"description" yaml:"description"`
	ForkChoices     ForkChoices `json:"fork_choices" yaml:"fork_choices"`
	PopulationShare float64     `json:"population_share" yaml:"population_share"`
	Stability       float64     `json:"stability,omitempty" yaml:"stability,omitempty"`
	Traits          []string    `json:"traits,omitempty" yaml:"traits,omitempty"`
}

// Choice returns the archetype's pole on forkID.
func (a Archetype) Choice(forkID string) (forks.Pole, bool) {
	for _, c := range a.ForkChoices {
		if c.ForkID == forkID {
			return c.Pole, true
		}
	}
	return "", false
}

// Matches is the fraction of the archetype's defining forks on which the
// walker accepted the archetype's pole, counting only forks the walker took
// a side on. It is 0 when the walker took no side on any of them.
func (a Archetype) Matches(w *models.Walker) float64 {
	accepted := w.AcceptedSet()
	matched, total := 0, 0
	for _, c := range a.ForkChoices {
		var took forks.Pole
		switch {
		case accepted[c.ForkID+"_a"]:
			took = forks.PoleA
		case accepted[c.ForkID+"_b"]:
			took = forks.PoleB
		default:
			continue
		}
		total++
		if took == c.Pole {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

type archetypeDoc struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// Archetypes returns the built-in archetype catalog.
func Archetypes() []Archetype {
	var doc archetypeDoc
	if err := yaml.Unmarshal(archetypesYAML, &doc); err != nil {
		panic(fmt.Sprintf("embedded archetypes: %v", err))
	}
	return doc.Archetypes
}

// ArchetypeMatch is an archetype with a walker's match score.
type ArchetypeMatch struct {
	Archetype Archetype `json:"archetype"`
	Score     float64   `json:"score"`
}

// BestArchetype returns the archetype the walker matches best. It reports
// false when the walker matches none of them.
func BestArchetype(w *models.Walker, archetypes []Archetype) (ArchetypeMatch, bool) {
	var best ArchetypeMatch
	for _, a := range archetypes {
		if s := a.Matches(w); s > best.Score {
			best = ArchetypeMatch{Archetype: a, Score: s}
		}
	}
	return best, best.Score > 0
}
