package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Valence is a position's left/right lean. A position either has a value in
// [-1, 1] or is orthogonal to the axis altogether; the zero Valence is unset.
type Valence struct {
	value float64
	set   bool
}

// NoValence returns an unset valence.
func NoValence() Valence { return Valence{} }

// NewValence returns a set valence clamped to [-1, 1].
func NewValence(v float64) Valence {
	return Valence{value: clamp(v, -1, 1), set: true}
}

// Get returns the value and whether it is set.
func (v Valence) Get() (float64, bool) { return v.value, v.set }

// IsSet reports whether the valence carries a value.
func (v Valence) IsSet() bool { return v.set }

func (v Valence) String() string {
	if !v.set {
		return "unset"
	}
	return strconv.FormatFloat(v.value, 'f', 2, 64)
}

// MarshalJSON encodes an unset valence as null.
func (v Valence) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

// UnmarshalJSON accepts null or a number.
func (v *Valence) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Valence{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("valence: %w", err)
	}
	*v = NewValence(f)
	return nil
}

// MarshalYAML encodes an unset valence as null.
func (v Valence) MarshalYAML() (any, error) {
	if !v.set {
		return nil, nil
	}
	return v.value, nil
}

// UnmarshalYAML accepts a number; null nodes leave the valence unset.
func (v *Valence) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err != nil {
		return fmt.Errorf("valence: %w", err)
	}
	*v = NewValence(f)
	return nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 bounds x to [0, 1].
func Clamp01(x float64) float64 { return clamp(x, 0, 1) }
