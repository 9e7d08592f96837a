package fsm

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition describes a machine as data.
//
//	name: timeline_editor
//	initial: start
//	reset: reset
//	states:
//	  - name: start
//	    transitions:
//	      - on: start_editing
//	        to: editing_in_progress
type Definition struct {
	Name    string            `mapstructure:"name" json:"name" yaml:"name"`
	Initial string            `mapstructure:"initial" json:"initial" yaml:"initial"`
	Reset   string            `mapstructure:"reset" json:"reset,omitempty" yaml:"reset,omitempty"`
	States  []StateDefinition `mapstructure:"states" json:"states" yaml:"states"`
}

// StateDefinition describes one state and its ordered transitions.
type StateDefinition struct {
	Name        string                 `mapstructure:"name" json:"name" yaml:"name"`
	Transitions []TransitionDefinition `mapstructure:"transitions" json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// TransitionDefinition describes one transition.
type TransitionDefinition struct {
	On     string `mapstructure:"on" json:"on" yaml:"on"`
	To     string `mapstructure:"to" json:"to" yaml:"to"`
	Hidden bool   `mapstructure:"hidden" json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// DecodeDefinition converts a generic map (from YAML, JSON or a config
// layer) into a Definition. Unknown keys are rejected.
func DecodeDefinition(raw map[string]any) (Definition, error) {
	var def Definition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &def,
	})
	if err != nil {
		return def, err
	}
	if err := decoder.Decode(raw); err != nil {
		return def, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return def, nil
}

// ParseDefinition decodes YAML (a superset of JSON) into a Definition.
func ParseDefinition(data []byte) (Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return DecodeDefinition(raw)
}

// LoadDefinition reads a .yaml, .yml or .json file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read machine definition: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		return DecodeDefinition(raw)
	}
	return ParseDefinition(data)
}

// LoadDefinitionFS reads a definition from an fs.FS (e.g. an embed.FS).
func LoadDefinitionFS(fsys fs.FS, path string) (Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read machine definition: %w", err)
	}
	return ParseDefinition(data)
}

// Build compiles the definition into a Machine.
// Duplicate state names are rejected here; the Builder would merge them.
func (d Definition) Build(opts ...Option) (*Machine, error) {
	if d.Initial == "" {
		return nil, fmt.Errorf("%w: missing initial state", ErrInvalidDefinition)
	}

	b := NewBuilder(d.Initial)
	seen := make(map[string]bool)
	for _, sd := range d.States {
		if sd.Name == "" {
			return nil, fmt.Errorf("%w: state without name", ErrInvalidDefinition)
		}
		if seen[sd.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateState, sd.Name)
		}
		seen[sd.Name] = true

		sb := b.Add(sd.Name)
		for _, td := range sd.Transitions {
			var topts []TransitionOption
			if td.Hidden {
				topts = append(topts, Hidden())
			}
			sb.On(td.On, td.To, topts...)
		}
	}
	if d.Reset != "" {
		b.ResetTo(d.Reset, d.Initial)
	}

	if d.Name != "" {
		opts = append([]Option{WithName(d.Name)}, opts...)
	}
	return b.Build(opts...)
}

// DefinitionOf exports a machine back into its data form.
func DefinitionOf(m *Machine) Definition {
	def := Definition{Name: m.Name(), Initial: m.Initial().Name}
	for _, s := range m.States() {
		sd := StateDefinition{Name: s.Name}
		for _, action := range s.order {
			sd.Transitions = append(sd.Transitions, TransitionDefinition{
				On:     action,
				To:     s.transitions[action].Name,
				Hidden: s.hidden[action],
			})
		}
		def.States = append(def.States, sd)
	}
	return def
}
