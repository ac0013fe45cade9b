package engine

import (
	"fmt"

	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/expr-lang/expr"
)

// exprEnv exposes the current variable values to expressions by name. Unset
// variables appear as nil so expressions can test for presence.
func exprEnv(vars models.Variables) map[string]interface{} {
	env := make(map[string]interface{}, len(vars))
	for i := range vars {
		if vars[i].Value != nil {
			env[vars[i].Name] = *vars[i].Value
		} else {
			env[vars[i].Name] = nil
		}
	}
	return env
}

// EvaluateCondition evaluates a boolean expression over the current variable
// values. Condition block items carry these expressions as their content.
func EvaluateCondition(vars models.Variables, expression string) (bool, error) {
	env := exprEnv(vars)
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", expression, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", expression, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", expression, output)
	}
	return result, nil
}

// EvaluateExpression evaluates a set-variable expression and renders the
// result as a string.
func EvaluateExpression(vars models.Variables, expression string) (string, error) {
	env := exprEnv(vars)
	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return "", fmt.Errorf("compile expression %q: %w", expression, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("eval expression %q: %w", expression, err)
	}
	if output == nil {
		return "", nil
	}
	return fmt.Sprint(output), nil
}
