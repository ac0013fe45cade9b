package engine

import (
	"testing"

	"github.com/BotWeave/BotWeave/internal/models"
)

func TestEvaluateCondition(t *testing.T) {
	vars := models.Variables{
		{ID: "v1", Name: "Score", Value: strPtr("10")},
		{ID: "v2", Name: "Pending"},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
		wantErr    bool
	}{
		{"string equality holds", `Score == "10"`, true, false},
		{"string equality fails", `Score == "20"`, false, false},
		{"unset variable is nil", "Pending == nil", true, false},
		{"undefined variable allowed", "Unknown == nil", true, false},
		{"conjunction", `Score == "10" && Pending == nil`, true, false},
		{"syntax error", "((broken", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(vars, tt.expression)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.expression)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvaluateCondition(%q) failed: %v", tt.expression, err)
			}
			if got != tt.want {
				t.Errorf("EvaluateCondition(%q) = %v, want %v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestEvaluateExpression(t *testing.T) {
	vars := models.Variables{
		{ID: "v1", Name: "Name", Value: strPtr("Ada")},
	}

	tests := []struct {
		name       string
		expression string
		want       string
		wantErr    bool
	}{
		{"string literal", `"hello"`, "hello", false},
		{"concatenation with variable", `"Hi " + Name`, "Hi Ada", false},
		{"arithmetic rendered as string", "2 + 3", "5", false},
		{"nil renders empty", "nil", "", false},
		{"syntax error", "((broken", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(vars, tt.expression)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.expression)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvaluateExpression(%q) failed: %v", tt.expression, err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression(%q) = %q, want %q", tt.expression, got, tt.want)
			}
		})
	}
}
