package filters

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	s := Default()

	require.NotEmpty(t, s.Categories)

	f, ok := s.Field("status")
	require.True(t, ok)
	assert.Equal(t, ValueEnum, f.ValueType)
	assert.Contains(t, f.Options, "subscribed")

	ops := s.OperatorsFor(ValueBoolean)
	require.Len(t, ops, 2)
	assert.Equal(t, "is_true", ops[0].Key)
	assert.Equal(t, ArityNone, ops[0].Arity)

	assert.True(t, s.Allows(ValueTag, "has_any"))
	assert.False(t, s.Allows(ValueString, "greater_than"))
}

func TestLoad_RejectsInconsistentConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown arity",
			yaml: "operators:\n  eq: { label: eq, arity: many }\n",
			want: "unknown arity",
		},
		{
			name: "unknown operator reference",
			yaml: "operators:\n  eq: { label: eq, arity: single }\nvalue_types:\n  string: [eq, ne]\n",
			want: "unknown operator",
		},
		{
			name: "duplicate field",
			yaml: `operators:
  eq: { label: eq, arity: single }
value_types:
  string: [eq]
categories:
  - key: a
    fields:
      - { key: email, value_type: string }
  - key: b
    fields:
      - { key: email, value_type: string }
`,
			want: "more than once",
		},
		{
			name: "enum without options",
			yaml: `operators:
  is: { label: is, arity: single }
value_types:
  enum: [is]
categories:
  - key: a
    fields:
      - { key: status, value_type: enum }
`,
			want: "no options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	s := Default()

	tests := []struct {
		name    string
		filter  string
		wantErr string
	}{
		{
			name:   "empty group",
			filter: `{"match":"all","conditions":[]}`,
		},
		{
			name: "compound filter",
			filter: `{"match":"all","conditions":[
				{"field":"email","operator":"ends_with","value":"@example.com"},
				{"field":"status","operator":"is","value":"subscribed"},
				{"field":"lifetime_value","operator":"between","value":[100,500]},
				{"field":"is_active","operator":"is_true"},
				{"field":"last_activity_at","operator":"in_last_days","value":30}
			],"groups":[{"match":"any","conditions":[
				{"field":"tags","operator":"has_any","value":["vip","beta"]},
				{"field":"created_at","operator":"after","value":"2024-01-01"}
			]}]}`,
		},
		{
			name:    "missing match",
			filter:  `{"conditions":[]}`,
			wantErr: "Match",
		},
		{
			name:    "bad match",
			filter:  `{"match":"some"}`,
			wantErr: "Match",
		},
		{
			name:    "unknown field",
			filter:  `{"match":"all","conditions":[{"field":"shoe_size","operator":"equals","value":"9"}]}`,
			wantErr: "unknown field",
		},
		{
			name:    "operator not allowed for type",
			filter:  `{"match":"all","conditions":[{"field":"email","operator":"greater_than","value":"a"}]}`,
			wantErr: "not allowed",
		},
		{
			name:    "missing value",
			filter:  `{"match":"all","conditions":[{"field":"email","operator":"contains"}]}`,
			wantErr: "requires a value",
		},
		{
			name:    "unexpected value",
			filter:  `{"match":"all","conditions":[{"field":"is_active","operator":"is_false","value":true}]}`,
			wantErr: "takes no value",
		},
		{
			name:    "range with one value",
			filter:  `{"match":"all","conditions":[{"field":"emails_opened","operator":"between","value":[1]}]}`,
			wantErr: "exactly two",
		},
		{
			name:    "empty list",
			filter:  `{"match":"all","conditions":[{"field":"tags","operator":"has_all","value":[]}]}`,
			wantErr: "at least one",
		},
		{
			name:    "enum option",
			filter:  `{"match":"all","conditions":[{"field":"status","operator":"in","value":["subscribed","lost"]}]}`,
			wantErr: "expects one of",
		},
		{
			name:    "number type",
			filter:  `{"match":"all","conditions":[{"field":"emails_clicked","operator":"greater_than","value":"ten"}]}`,
			wantErr: "expects a number",
		},
		{
			name:    "date format",
			filter:  `{"match":"all","conditions":[{"field":"created_at","operator":"before","value":"last tuesday"}]}`,
			wantErr: "expects a date",
		},
		{
			name:    "days must be positive",
			filter:  `{"match":"all","conditions":[{"field":"created_at","operator":"in_last_days","value":0}]}`,
			wantErr: "positive number",
		},
		{
			name: "too deep",
			filter: `{"match":"all","groups":[{"match":"any","groups":[{"match":"all","groups":[
				{"match":"all"}]}]}]}`,
			wantErr: "deeper than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Group
			require.NoError(t, json.Unmarshal([]byte(tt.filter), &g))

			err := s.Validate(g)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFilter))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchemaYAML(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "value_types:")
	assert.Contains(t, string(out), "preferred_channel")
}
