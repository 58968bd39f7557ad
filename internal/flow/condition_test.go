package flow_test

import (
	"testing"

	"github.com/botforge/flowengine/internal/domain"
	"github.com/botforge/flowengine/internal/flow"
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name string
		rule *domain.ConditionRule
		vars flow.Vars
		want bool
	}{
		{
			name: "nil rule fails open",
			rule: nil,
			vars: flow.Vars{"x": "1"},
			want: true,
		},
		{
			name: "empty variable name fails open",
			rule: &domain.ConditionRule{Operator: domain.OpEquals, Value: "1"},
			vars: flow.Vars{"x": "1"},
			want: true,
		},
		{
			name: "missing operator defaults to equals",
			rule: &domain.ConditionRule{Variable: "x", Value: ""},
			vars: flow.Vars{},
			want: true,
		},
		{
			name: "unknown operator fails open",
			rule: &domain.ConditionRule{Variable: "x", Operator: "matches", Value: "1"},
			vars: flow.Vars{"x": "2"},
			want: true,
		},
		{
			name: "equals true",
			rule: &domain.ConditionRule{Variable: "plan", Operator: domain.OpEquals, Value: "pro"},
			vars: flow.Vars{"plan": "pro"},
			want: true,
		},
		{
			name: "equals false",
			rule: &domain.ConditionRule{Variable: "plan", Operator: domain.OpEquals, Value: "pro"},
			vars: flow.Vars{"plan": "free"},
			want: false,
		},
		{
			name: "not_equals",
			rule: &domain.ConditionRule{Variable: "plan", Operator: domain.OpNotEquals, Value: "pro"},
			vars: flow.Vars{"plan": "free"},
			want: true,
		},
		{
			name: "greater true",
			rule: &domain.ConditionRule{Variable: "age", Operator: domain.OpGreater, Value: "18"},
			vars: flow.Vars{"age": "20"},
			want: true,
		},
		{
			name: "greater false",
			rule: &domain.ConditionRule{Variable: "age", Operator: domain.OpGreater, Value: "18"},
			vars: flow.Vars{"age": "10"},
			want: false,
		},
		{
			name: "greater with non-numeric value is false",
			rule: &domain.ConditionRule{Variable: "age", Operator: domain.OpGreater, Value: "18"},
			vars: flow.Vars{"age": "abc"},
			want: false,
		},
		{
			name: "less with non-numeric value is false",
			rule: &domain.ConditionRule{Variable: "age", Operator: domain.OpLess, Value: "18"},
			vars: flow.Vars{"age": "abc"},
			want: false,
		},
		{
			name: "less true",
			rule: &domain.ConditionRule{Variable: "age", Operator: domain.OpLess, Value: "18"},
			vars: flow.Vars{"age": "9"},
			want: true,
		},
		{
			name: "contains true",
			rule: &domain.ConditionRule{Variable: "email", Operator: domain.OpContains, Value: "@"},
			vars: flow.Vars{"email": "a@b.c"},
			want: true,
		},
		{
			name: "contains false",
			rule: &domain.ConditionRule{Variable: "email", Operator: domain.OpContains, Value: "@"},
			vars: flow.Vars{"email": "nope"},
			want: false,
		},
		{
			name: "missing variable compares as empty string",
			rule: &domain.ConditionRule{Variable: "ghost", Operator: domain.OpEquals, Value: ""},
			vars: flow.Vars{},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flow.EvaluateCondition(tt.rule, tt.vars); got != tt.want {
				t.Errorf("EvaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}
