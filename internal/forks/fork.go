// Package forks models the ideological fork tree: binary decision points
// arranged from root questions (meaning, human nature) down to concrete
// policy. Forks seed the graph with positions and are the unit of analysis
// for compaction.
package forks

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/ideograph/internal/models"
)

// ErrUnknownForkLevel is returned when a fork level string is not recognized.
var ErrUnknownForkLevel = errors.New("unknown fork level")

// Level is a fork's depth band in the tree.
type Level string

const (
	LevelRoot      Level = "root"      // deepest questions: meaning, nature
	LevelMeta      Level = "meta"      // ontological commitments
	LevelAxiom     Level = "axiom"     // foundational values
	LevelFramework Level = "framework" // organizing principles
	LevelDomain    Level = "domain"    // area-specific stances
	LevelPolicy    Level = "policy"    // concrete positions
	LevelContext   Level = "context"   // situational applications
)

// Levels lists the fork levels from root to leaf.
func Levels() []Level {
	return []Level{LevelRoot, LevelMeta, LevelAxiom, LevelFramework, LevelDomain, LevelPolicy, LevelContext}
}

// ParseLevel converts s to a Level. Unknown values are an error.
func ParseLevel(s string) (Level, error) {
	if slices.Contains(Levels(), Level(s)) {
		return Level(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownForkLevel, s)
}

func (l Level) String() string { return string(l) }

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l == "" {
		return []byte(LevelDomain), nil
	}
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown levels.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Pole is one side of a fork.
type Pole string

const (
	PoleA Pole = "a"
	PoleB Pole = "b"
)

// Opposite returns the other pole.
func (p Pole) Opposite() Pole {
	if p == PoleA {
		return PoleB
	}
	return PoleA
}

// Default weights for forks that do not declare them.
const (
	DefaultPolarization = 0.5
	DefaultImportance   = 0.5
)

// parentEdgeWeight is the weight of the implies edges joining a parent
// fork's poles to its child's poles.
const parentEdgeWeight = 0.3

// Fork is a binary ideological decision point.
type Fork struct {
	ID           string        `json:"id" yaml:"id"`
	Question     string        `json:"question" yaml:"question"`
	OptionA      string        `json:"option_a" yaml:"option_a"`
	OptionB      string        `json:"option_b" yaml:"option_b"`
	Level        Level         `json:"level" yaml:"level"`
	Domain       models.Domain `json:"domain" yaml:"domain"`
	ParentForkID string        `json:"parent_fork_id,omitempty" yaml:"parent_fork_id,omitempty"`
	ChildForks   []string      `json:"child_forks,omitempty" yaml:"child_forks,omitempty"`

	TraditionsA []string `json:"traditions_a,omitempty" yaml:"traditions_a,omitempty"`
	TraditionsB []string `json:"traditions_b,omitempty" yaml:"traditions_b,omitempty"`

	// Polarization is how strongly the fork divides people, 0 to 1.
	Polarization float64 `json:"polarization" yaml:"polarization"`

	// Importance is how much downstream the fork affects, 0 to 1.
	Importance float64 `json:"importance" yaml:"importance"`
}

// normalize fills the defaults a declared fork may omit.
func (f *Fork) normalize() {
	if f.ID == "" {
		q := []rune(strings.ToLower(f.Question))
		f.ID = "fork_" + strings.ReplaceAll(string(q[:min(20, len(q))]), " ", "_")
	}
	if f.Level == "" {
		f.Level = LevelDomain
	}
	if f.Domain == "" {
		f.Domain = models.DomainUncategorized
	}
}

// PoleID returns the position ID for one side of the fork.
func (f Fork) PoleID(p Pole) string { return f.ID + "_" + string(p) }

// Option returns the claim for one side of the fork.
func (f Fork) Option(p Pole) string {
	if p == PoleA {
		return f.OptionA
	}
	return f.OptionB
}

// Traditions returns the traditions that typically choose p.
func (f Fork) Traditions(p Pole) []string {
	if p == PoleA {
		return f.TraditionsA
	}
	return f.TraditionsB
}

// PoleOf reports which side of the fork positionID is, if either.
func (f Fork) PoleOf(positionID string) (Pole, bool) {
	switch positionID {
	case f.PoleID(PoleA):
		return PoleA, true
	case f.PoleID(PoleB):
		return PoleB, true
	}
	return "", false
}

// Positions converts the fork into its two pole positions. By convention
// pole A carries valence -0.5 and pole B +0.5.
func (f Fork) Positions() (models.Position, models.Position) {
	a := models.Stance(f.OptionA, f.Domain,
		models.WithID(f.PoleID(PoleA)), models.WithValence(-0.5), models.WithTraditions(f.TraditionsA...))
	b := models.Stance(f.OptionB, f.Domain,
		models.WithID(f.PoleID(PoleB)), models.WithValence(0.5), models.WithTraditions(f.TraditionsB...))
	return a, b
}

// Edge returns the contradiction between the poles, weighted by polarization.
func (f Fork) Edge() models.Edge {
	return models.Contradicts(f.PoleID(PoleA), f.PoleID(PoleB), f.Polarization)
}

// Clone returns a deep copy of f.
func (f Fork) Clone() Fork {
	f.ChildForks = slices.Clone(f.ChildForks)
	f.TraditionsA = slices.Clone(f.TraditionsA)
	f.TraditionsB = slices.Clone(f.TraditionsB)
	return f
}
