package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/utils"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// timestamp reads RFC 3339 and the zone-less ISO-8601 form older graph
// files carry, and always writes RFC 3339.
type timestamp time.Time

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"}

func (t timestamp) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(time.RFC3339Nano)), nil
}

func (t *timestamp) UnmarshalText(b []byte) error {
	for _, layout := range isoLayouts {
		if v, err := time.Parse(layout, string(b)); err == nil {
			*t = timestamp(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", b)
}

// jsonDocument keeps positions and edges raw so their key order survives.
type jsonDocument struct {
	Name      string           `json:"name"`
	CreatedAt timestamp        `json:"created_at"`
	UpdatedAt timestamp        `json:"updated_at"`
	Positions json.RawMessage  `json:"positions"`
	Edges     json.RawMessage  `json:"edges"`
	Walkers   []*models.Walker `json:"walkers,omitempty"`
}

type yamlDocument struct {
	Name      string           `yaml:"name"`
	CreatedAt timestamp        `yaml:"created_at"`
	UpdatedAt timestamp        `yaml:"updated_at"`
	Positions yaml.Node        `yaml:"positions"`
	Edges     yaml.Node        `yaml:"edges"`
	Walkers   []*models.Walker `yaml:"walkers,omitempty"`
}

func positionKeys(ps []models.Position) []string {
	keys := make([]string, len(ps))
	for i, p := range ps {
		keys[i] = p.ID
	}
	return keys
}

func edgeKeys(es []models.Edge) []string {
	keys := make([]string, len(es))
	for i, e := range es {
		keys[i] = e.ID()
	}
	return keys
}

// EncodeJSON renders d as an indented JSON document with positions and edges
// as id-keyed objects.
func EncodeJSON(d Document) ([]byte, error) {
	positions, err := utils.EncodeObject(positionKeys(d.Positions), d.Positions)
	if err != nil {
		return nil, fmt.Errorf("encoding positions: %w", err)
	}
	edges, err := utils.EncodeObject(edgeKeys(d.Edges), d.Edges)
	if err != nil {
		return nil, fmt.Errorf("encoding edges: %w", err)
	}
	return json.MarshalIndent(jsonDocument{
		Name:      d.Name,
		CreatedAt: timestamp(d.CreatedAt),
		UpdatedAt: timestamp(d.UpdatedAt),
		Positions: positions,
		Edges:     edges,
		Walkers:   d.Walkers,
	}, "", "  ")
}

// DecodeJSON parses a JSON graph document.
func DecodeJSON(data []byte) (Document, error) {
	var raw jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("parsing graph document: %w", err)
	}
	d := Document{
		Name:      raw.Name,
		CreatedAt: time.Time(raw.CreatedAt),
		UpdatedAt: time.Time(raw.UpdatedAt),
		Walkers:   raw.Walkers,
	}

	members, err := utils.DecodeObject(raw.Positions)
	if err != nil {
		return Document{}, fmt.Errorf("parsing positions: %w", err)
	}
	for _, m := range members {
		var p models.Position
		if err := json.Unmarshal(m.Value, &p); err != nil {
			return Document{}, fmt.Errorf("position %q: %w", m.Key, err)
		}
		if err := addPosition(&d, p, m.Key); err != nil {
			return Document{}, err
		}
	}

	members, err = utils.DecodeObject(raw.Edges)
	if err != nil {
		return Document{}, fmt.Errorf("parsing edges: %w", err)
	}
	for _, m := range members {
		var e models.Edge
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return Document{}, fmt.Errorf("edge %q: %w", m.Key, err)
		}
		if err := addEdge(&d, e, m.Key); err != nil {
			return Document{}, err
		}
	}
	return d, nil
}

// EncodeYAML renders d as a YAML document. Positions and edges are
// id-keyed mappings in insertion order.
func EncodeYAML(d Document) ([]byte, error) {
	positions, err := yamlMapping(positionKeys(d.Positions), d.Positions)
	if err != nil {
		return nil, fmt.Errorf("encoding positions: %w", err)
	}
	edges, err := yamlMapping(edgeKeys(d.Edges), d.Edges)
	if err != nil {
		return nil, fmt.Errorf("encoding edges: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{
		Name:      d.Name,
		CreatedAt: timestamp(d.CreatedAt),
		UpdatedAt: timestamp(d.UpdatedAt),
		Positions: positions,
		Edges:     edges,
		Walkers:   d.Walkers,
	}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yamlMapping[T any](keys []string, values []T) (yaml.Node, error) {
	m := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, k := range keys {
		var v yaml.Node
		if err := v.Encode(values[i]); err != nil {
			return yaml.Node{}, fmt.Errorf("%q: %w", k, err)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &v)
	}
	return m, nil
}

// DecodeYAML parses a YAML graph document.
func DecodeYAML(data []byte) (Document, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("parsing graph document: %w", err)
	}
	d := Document{
		Name:      raw.Name,
		CreatedAt: time.Time(raw.CreatedAt),
		UpdatedAt: time.Time(raw.UpdatedAt),
		Walkers:   raw.Walkers,
	}

	err := eachYAMLMember(&raw.Positions, func(key string, v *yaml.Node) error {
		var p models.Position
		if err := v.Decode(&p); err != nil {
			return fmt.Errorf("position %q: %w", key, err)
		}
		return addPosition(&d, p, key)
	})
	if err != nil {
		return Document{}, err
	}
	err = eachYAMLMember(&raw.Edges, func(key string, v *yaml.Node) error {
		var e models.Edge
		if err := v.Decode(&e); err != nil {
			return fmt.Errorf("edge %q: %w", key, err)
		}
		return addEdge(&d, e, key)
	})
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

// eachYAMLMember walks a mapping node in document order. Absent and null
// nodes are empty mappings.
func eachYAMLMember(n *yaml.Node, fn func(key string, v *yaml.Node) error) error {
	switch {
	case n.Kind == 0:
		return nil
	case n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		return nil
	case n.Kind != yaml.MappingNode:
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func addPosition(d *Document, p models.Position, key string) error {
	if p.ID == "" {
		p.ID = key
	}
	if err := checkPosition(&p); err != nil {
		return fmt.Errorf("position %q: %w", p.ID, err)
	}
	d.Positions = append(d.Positions, p)
	return nil
}

func addEdge(d *Document, e models.Edge, key string) error {
	if err := checkEdge(e); err != nil {
		return fmt.Errorf("edge %q: %w", key, err)
	}
	d.Edges = append(d.Edges, e)
	return nil
}

// DocumentStore keeps a graph in a single JSON or YAML file.
type DocumentStore struct {
	path   string
	format Format
}

// NewDocumentStore creates a store for the file at path. Nothing is read or
// written until Load or Save.
func NewDocumentStore(path string, format Format) *DocumentStore {
	return &DocumentStore{path: path, format: format}
}

// Path returns the document file.
func (s *DocumentStore) Path() string { return s.path }

// Save writes the graph, replacing the file atomically.
func (s *DocumentStore) Save(ctx context.Context, src graph.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := DocumentOf(src)
	var data []byte
	var err error
	if s.format == FormatYAML {
		data, err = EncodeYAML(d)
	} else {
		data, err = EncodeJSON(d)
	}
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing graph: %w", err)
	}
	return nil
}

// Load reads the document. A missing file yields ErrNoGraph.
func (s *DocumentStore) Load(ctx context.Context, cfg graph.Config, opts ...graph.Option) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoGraph, s.path)
		}
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	var d Document
	if s.format == FormatYAML {
		d, err = DecodeYAML(data)
	} else {
		d, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, err
	}
	return d.Graph(cfg, opts...), nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *DocumentStore) Close() error { return nil }
