// Package filters describes the segment filter schema: which contact fields
// can be filtered on, what type of value each holds, and which operators
// apply to each value type. It validates filter definitions against that
// schema but does not evaluate them.
package filters

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed filter_config.yaml
var defaultConfig []byte

// ValueType is the kind of value a field holds
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueDate    ValueType = "date"
	ValueBoolean ValueType = "boolean"
	ValueEnum    ValueType = "enum"
	ValueTag     ValueType = "tag"
)

// Arity is the shape of value an operator expects
type Arity string

const (
	ArityNone   Arity = "none"
	AritySingle Arity = "single"
	ArityRange  Arity = "range"
	ArityList   Arity = "list"
)

// Operator describes a comparison
type Operator struct {
	Key   string `yaml:"-" json:"key"`
	Label string `yaml:"label" json:"label"`
	Arity Arity  `yaml:"arity" json:"arity"`
}

// Field is a filterable contact property
type Field struct {
	Key       string    `yaml:"key" json:"key"`
	Label     string    `yaml:"label" json:"label"`
	ValueType ValueType `yaml:"value_type" json:"value_type"`
	Options   []string  `yaml:"options,omitempty" json:"options,omitempty"`
}

// Category groups related fields
type Category struct {
	Key    string  `yaml:"key" json:"key"`
	Label  string  `yaml:"label" json:"label"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Schema is the full filter configuration
type Schema struct {
	Operators  map[string]Operator    `yaml:"operators" json:"operators"`
	ValueTypes map[ValueType][]string `yaml:"value_types" json:"value_types"`
	Categories []Category             `yaml:"categories" json:"categories"`

	fields map[string]Field
}

// Load parses a YAML filter configuration and checks it is self-consistent
func Load(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse filter config: %w", err)
	}

	for key, op := range s.Operators {
		op.Key = key
		switch op.Arity {
		case ArityNone, AritySingle, ArityRange, ArityList:
		default:
			return nil, fmt.Errorf("operator %q has unknown arity %q", key, op.Arity)
		}
		s.Operators[key] = op
	}

	for vt, ops := range s.ValueTypes {
		for _, op := range ops {
			if _, ok := s.Operators[op]; !ok {
				return nil, fmt.Errorf("value type %q references unknown operator %q", vt, op)
			}
		}
	}

	s.fields = make(map[string]Field)
	for _, cat := range s.Categories {
		for _, f := range cat.Fields {
			if _, dup := s.fields[f.Key]; dup {
				return nil, fmt.Errorf("field %q declared more than once", f.Key)
			}
			if _, ok := s.ValueTypes[f.ValueType]; !ok {
				return nil, fmt.Errorf("field %q has unknown value type %q", f.Key, f.ValueType)
			}
			if f.ValueType == ValueEnum && len(f.Options) == 0 {
				return nil, fmt.Errorf("enum field %q has no options", f.Key)
			}
			s.fields[f.Key] = f
		}
	}

	return &s, nil
}

var loadDefault = sync.OnceValues(func() (*Schema, error) {
	return Load(defaultConfig)
})

// Default returns the embedded schema. It panics if the embedded file is broken.
func Default() *Schema {
	s, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a field by key
func (s *Schema) Field(key string) (Field, bool) {
	f, ok := s.fields[key]
	return f, ok
}

// OperatorsFor returns the operators valid for a value type, in declaration order
func (s *Schema) OperatorsFor(vt ValueType) []Operator {
	keys := s.ValueTypes[vt]
	ops := make([]Operator, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, s.Operators[k])
	}
	return ops
}

// Allows reports whether op is valid for fields of type vt
func (s *Schema) Allows(vt ValueType, op string) bool {
	for _, k := range s.ValueTypes[vt] {
		if k == op {
			return true
		}
	}
	return false
}

// YAML renders the schema back to YAML
func (s *Schema) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
