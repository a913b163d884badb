package forks

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/utils"
)

// catalogs holds the built-in fork catalogs.
//
//go:embed catalogs/*.yaml
var catalogs embed.FS

// CanonicalCatalog is the contemporary ideology backbone.
const CanonicalCatalog = "canonical"

// wireFork is the persisted shape of a fork. Optional weights default to 0.5
// and parent_fork_id is null for roots.
type wireFork struct {
	ID           string        `json:"id" yaml:"id"`
	Question     string        `json:"question" yaml:"question"`
	OptionA      string        `json:"option_a" yaml:"option_a"`
	OptionB      string        `json:"option_b" yaml:"option_b"`
	Level        Level         `json:"level" yaml:"level"`
	Domain       models.Domain `json:"domain" yaml:"domain"`
	ParentForkID *string       `json:"parent_fork_id" yaml:"parent_fork_id,omitempty"`
	ChildForks   []string      `json:"child_forks" yaml:"child_forks,omitempty"`
	TraditionsA  []string      `json:"traditions_a" yaml:"traditions_a,omitempty"`
	TraditionsB  []string      `json:"traditions_b" yaml:"traditions_b,omitempty"`
	Polarization *float64      `json:"polarization" yaml:"polarization,omitempty"`
	Importance   *float64      `json:"importance" yaml:"importance,omitempty"`
}

func (w wireFork) fork() Fork {
	f := Fork{
		ID:           w.ID,
		Question:     w.Question,
		OptionA:      w.OptionA,
		OptionB:      w.OptionB,
		Level:        w.Level,
		Domain:       w.Domain,
		ChildForks:   w.ChildForks,
		TraditionsA:  w.TraditionsA,
		TraditionsB:  w.TraditionsB,
		Polarization: DefaultPolarization,
		Importance:   DefaultImportance,
	}
	if w.ParentForkID != nil {
		f.ParentForkID = *w.ParentForkID
	}
	if w.Polarization != nil {
		f.Polarization = *w.Polarization
	}
	if w.Importance != nil {
		f.Importance = *w.Importance
	}
	return f
}

func toWire(f Fork) wireFork {
	w := wireFork{
		ID:           f.ID,
		Question:     f.Question,
		OptionA:      f.OptionA,
		OptionB:      f.OptionB,
		Level:        f.Level,
		Domain:       f.Domain,
		ChildForks:   f.ChildForks,
		TraditionsA:  f.TraditionsA,
		TraditionsB:  f.TraditionsB,
		Polarization: &f.Polarization,
		Importance:   &f.Importance,
	}
	if w.ChildForks == nil {
		w.ChildForks = []string{}
	}
	if w.TraditionsA == nil {
		w.TraditionsA = []string{}
	}
	if w.TraditionsB == nil {
		w.TraditionsB = []string{}
	}
	if f.ParentForkID != "" {
		w.ParentForkID = &f.ParentForkID
	}
	return w
}

// catalogDoc is the YAML catalog layout: a list keeps authoring order.
type catalogDoc struct {
	Forks []wireFork `yaml:"forks"`
}

// Catalogs lists the names of the built-in catalogs.
func Catalogs() []string {
	entries, err := catalogs.ReadDir("catalogs")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

// Catalog loads a built-in catalog by name.
func Catalog(name string) (*Tree, error) {
	data, err := catalogs.ReadFile("catalogs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown fork catalog %q", name)
	}
	return DecodeYAML(data)
}

// Canonical loads the canonical fork tree.
func Canonical() *Tree {
	t, err := Catalog(CanonicalCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded canonical catalog: %v", err))
	}
	return t
}

// DecodeYAML parses a YAML catalog document.
func DecodeYAML(data []byte) (*Tree, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing fork catalog: %w", err)
	}
	forks := make([]Fork, 0, len(doc.Forks))
	for _, w := range doc.Forks {
		forks = append(forks, w.fork())
	}
	return NewTree(forks...)
}

// DecodeJSON parses the fork-tree JSON document: an object mapping fork id
// to fork, in tree order.
func DecodeJSON(data []byte) (*Tree, error) {
	members, err := utils.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing fork tree: %w", err)
	}
	forks := make([]Fork, 0, len(members))
	for _, m := range members {
		var w wireFork
		if err := json.Unmarshal(m.Value, &w); err != nil {
			return nil, fmt.Errorf("parsing fork %q: %w", m.Key, err)
		}
		if w.ID == "" {
			w.ID = m.Key
		}
		forks = append(forks, w.fork())
	}
	return NewTree(forks...)
}

// EncodeJSON renders the tree as an indented fork-tree JSON document.
func (t *Tree) EncodeJSON() ([]byte, error) {
	wires := make([]wireFork, 0, len(t.order))
	for _, id := range t.order {
		wires = append(wires, toWire(*t.forks[id]))
	}
	raw, err := utils.EncodeObject(t.order, wires)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// EncodeYAML renders the tree as a YAML catalog document.
func (t *Tree) EncodeYAML() ([]byte, error) {
	doc := catalogDoc{Forks: make([]wireFork, 0, len(t.order))}
	for _, id := range t.order {
		doc.Forks = append(doc.Forks, toWire(*t.forks[id]))
	}
	return yaml.Marshal(doc)
}

// Load reads a fork tree from path: YAML catalog layout for .yaml/.yml,
// JSON otherwise. Unknown levels or domains fail the load.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fork tree: %w", err)
	}
	if isYAML(path) {
		return DecodeYAML(data)
	}
	return DecodeJSON(data)
}

// Save writes the tree to path, creating parent directories.
func (t *Tree) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = t.EncodeYAML()
	} else {
		data, err = t.EncodeJSON()
	}
	if err != nil {
		return fmt.Errorf("encoding fork tree: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing fork tree: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
