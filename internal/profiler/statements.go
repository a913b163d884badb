package profiler

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStatementConfidence is how far an unattributed statement is
// trusted to be genuine.
const DefaultStatementConfidence = 0.8

// Statement is one public utterance attributed to a figure.
type Statement struct {
	Text       string    `json:"text" yaml:"text"`
	Source     string    `json:"source,omitempty" yaml:"source,omitempty"`
	Date       time.Time `json:"date,omitzero" yaml:"date,omitempty"`
	Context    string    `json:"context,omitempty" yaml:"context,omitempty"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
}

// Dossier is a named collection of statements, as read from a file:
//
//	name: Jane Doe
//	statements:
//	  - text: "Free markets allocate best."
//	    source: interview
//	    date: 2024-05-01
//
// A bare sequence of statements is accepted too.
type Dossier struct {
	Name       string      `yaml:"name"`
	Statements []Statement `yaml:"statements"`
}

// DecodeDossier parses a YAML (or JSON) dossier. Statements without text
// are rejected; missing confidences default to DefaultStatementConfidence.
func DecodeDossier(data []byte) (Dossier, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Dossier{}, fmt.Errorf("parsing statements: %w", err)
	}

	var d Dossier
	if len(node.Content) > 0 {
		root := node.Content[0]
		var err error
		if root.Kind == yaml.SequenceNode {
			err = root.Decode(&d.Statements)
		} else {
			err = root.Decode(&d)
		}
		if err != nil {
			return Dossier{}, fmt.Errorf("decoding statements: %w", err)
		}
	}

	for i := range d.Statements {
		if d.Statements[i].Text == "" {
			return Dossier{}, fmt.Errorf("statement %d has no text", i)
		}
		if d.Statements[i].Confidence == 0 {
			d.Statements[i].Confidence = DefaultStatementConfidence
		}
	}
	return d, nil
}

// LoadDossier reads a dossier file.
func LoadDossier(path string) (Dossier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dossier{}, fmt.Errorf("reading statements: %w", err)
	}
	return DecodeDossier(data)
}
