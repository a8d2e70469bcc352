// Package preset loads named dice expressions ("fireball: 8d6") from YAML so
// that frequently used rolls can be invoked by name.
package preset

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/diceroll/internal/dice"
)

// reservedNames are console commands a preset may not shadow.
var reservedNames = map[string]bool{
	"help": true, "quit": true, "exit": true, "roll": true, "presets": true,
}

var validName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// yamlFile is the top-level YAML structure for preset files.
type yamlFile struct {
	Presets []yamlPreset `yaml:"presets"`
}

type yamlPreset struct {
	Name        string `yaml:"name"`
	Expression  string `yaml:"expression"`
	Description string `yaml:"description"`
}

// Preset is a named, pre-validated dice expression.
type Preset struct {
	Name        string
	Description string
	Expression  dice.Expression
}

// Book is an immutable set of presets keyed by lower-case name. It is safe
// for concurrent use.
type Book struct {
	byName map[string]*Preset
}

// LoadFile reads and validates a preset YAML file.
//
// Postcondition: Returns a Book or a non-nil error.
func LoadFile(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset file %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates presets from YAML bytes. Every expression
// is parsed and validated up front, so a Book never holds an expression that
// cannot be rolled.
//
// Postcondition: Returns a Book or an error describing every invalid entry.
func LoadBytes(data []byte) (*Book, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing preset YAML: %w", err)
	}

	book := &Book{byName: make(map[string]*Preset, len(file.Presets))}
	var errs []string
	for i, yp := range file.Presets {
		p, err := convert(yp)
		if err != nil {
			errs = append(errs, fmt.Sprintf("preset %d (%q): %v", i, yp.Name, err))
			continue
		}
		if _, dup := book.byName[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("preset %d: duplicate name %q", i, p.Name))
			continue
		}
		book.byName[p.Name] = p
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("validating presets: %s", strings.Join(errs, "; "))
	}
	return book, nil
}

func convert(yp yamlPreset) (*Preset, error) {
	name := strings.ToLower(strings.TrimSpace(yp.Name))
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("name must match %s", validName)
	}
	if reservedNames[name] {
		return nil, fmt.Errorf("name %q is reserved", name)
	}
	expr, err := dice.Parse(yp.Expression)
	if err != nil {
		return nil, err
	}
	if err := dice.Validate(expr); err != nil {
		return nil, err
	}
	return &Preset{Name: name, Description: strings.TrimSpace(yp.Description), Expression: expr}, nil
}

// Lookup returns the preset with the given name, ignoring case.
func (b *Book) Lookup(name string) (*Preset, bool) {
	if b == nil {
		return nil, false
	}
	p, ok := b.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// All returns every preset sorted by name.
func (b *Book) All() []*Preset {
	if b == nil {
		return nil
	}
	out := make([]*Preset, 0, len(b.byName))
	for _, p := range b.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of presets.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.byName)
}
