package filters

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxDepth is the deepest nesting of groups a filter may use
const MaxDepth = 3

// ErrInvalidFilter is wrapped by every validation failure
var ErrInvalidFilter = errors.New("invalid filter")

// Match modes
const (
	MatchAll = "all"
	MatchAny = "any"
)

// Condition compares one field against a value
type Condition struct {
	Field    string `json:"field" yaml:"field" validate:"required"`
	Operator string `json:"operator" yaml:"operator" validate:"required"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Group combines conditions and nested groups
type Group struct {
	Match      string      `json:"match" yaml:"match" validate:"required,oneof=all any"`
	Conditions []Condition `json:"conditions" yaml:"conditions" validate:"dive"`
	Groups     []Group     `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// IsEmpty reports whether the group matches unconditionally
func (g Group) IsEmpty() bool {
	return len(g.Conditions) == 0 && len(g.Groups) == 0
}

var validate = validator.New()

// Validate checks a filter definition against the schema
func (s *Schema) Validate(g Group) error {
	return s.validateGroup(g, 1, "filter")
}

func (s *Schema) validateGroup(g Group, depth int, path string) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %s nests deeper than %d levels", ErrInvalidFilter, path, MaxDepth)
	}

	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, path, err)
	}

	for i, c := range g.Conditions {
		if err := s.validateCondition(c, fmt.Sprintf("%s.conditions[%d]", path, i)); err != nil {
			return err
		}
	}

	for i, sub := range g.Groups {
		if err := s.validateGroup(sub, depth+1, fmt.Sprintf("%s.groups[%d]", path, i)); err != nil {
			return err
		}
	}

	return nil
}

func (s *Schema) validateCondition(c Condition, path string) error {
	field, ok := s.Field(c.Field)
	if !ok {
		return fmt.Errorf("%w: %s: unknown field %q", ErrInvalidFilter, path, c.Field)
	}

	if !s.Allows(field.ValueType, c.Operator) {
		return fmt.Errorf("%w: %s: operator %q not allowed for %s field %q",
			ErrInvalidFilter, path, c.Operator, field.ValueType, field.Key)
	}

	op := s.Operators[c.Operator]

	var values []any
	switch op.Arity {
	case ArityNone:
		if c.Value != nil {
			return fmt.Errorf("%w: %s: operator %q takes no value", ErrInvalidFilter, path, op.Key)
		}
		return nil
	case AritySingle:
		if c.Value == nil {
			return fmt.Errorf("%w: %s: operator %q requires a value", ErrInvalidFilter, path, op.Key)
		}
		values = []any{c.Value}
	case ArityRange, ArityList:
		list, ok := c.Value.([]any)
		if !ok {
			return fmt.Errorf("%w: %s: operator %q requires a list value", ErrInvalidFilter, path, op.Key)
		}
		if op.Arity == ArityRange && len(list) != 2 {
			return fmt.Errorf("%w: %s: operator %q requires exactly two values", ErrInvalidFilter, path, op.Key)
		}
		if len(list) == 0 {
			return fmt.Errorf("%w: %s: operator %q requires at least one value", ErrInvalidFilter, path, op.Key)
		}
		values = list
	}

	for _, v := range values {
		if err := checkValue(field, op, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, path, err)
		}
	}
	return nil
}

func checkValue(field Field, op Operator, v any) error {
	// in_last_days counts days regardless of the field being a date
	if op.Key == "in_last_days" {
		n, ok := asNumber(v)
		if !ok || n <= 0 {
			return fmt.Errorf("%s expects a positive number of days", op.Key)
		}
		return nil
	}

	switch field.ValueType {
	case ValueString, ValueTag:
		if s, ok := v.(string); !ok || s == "" {
			return fmt.Errorf("field %q expects a non-empty string", field.Key)
		}
	case ValueNumber:
		if _, ok := asNumber(v); !ok {
			return fmt.Errorf("field %q expects a number", field.Key)
		}
	case ValueDate:
		s, ok := v.(string)
		if !ok || !isDate(s) {
			return fmt.Errorf("field %q expects a date (YYYY-MM-DD or RFC 3339)", field.Key)
		}
	case ValueEnum:
		s, _ := v.(string)
		for _, opt := range field.Options {
			if s == opt {
				return nil
			}
		}
		return fmt.Errorf("field %q expects one of %v", field.Key, field.Options)
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func isDate(s string) bool {
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
