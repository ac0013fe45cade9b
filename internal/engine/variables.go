package engine

import (
	"regexp"
	"strings"

	"github.com/BotWeave/BotWeave/internal/models"
)

var variablePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ParseVariables substitutes {{variableName}} placeholders in content with
// the current variable values. Unset or unknown variables render as empty
// strings.
func ParseVariables(vars models.Variables, content string) string {
	if content == "" || !strings.Contains(content, "{{") {
		return content
	}
	return variablePattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		v := vars.ByName(name)
		if v == nil || v.Value == nil {
			return ""
		}
		return *v.Value
	})
}

// VariableUpdate assigns a new value to the variable with the given ID.
type VariableUpdate struct {
	ID    string
	Value string
}

// UpdateVariables returns a new session state with the matching variables'
// values overwritten. Unmatched IDs are ignored. The input state is never
// mutated.
func UpdateVariables(state models.SessionState, updates []VariableUpdate) models.SessionState {
	ns := state.Clone()
	for _, upd := range updates {
		v := ns.Flow.Variables.ByID(upd.ID)
		if v == nil {
			continue
		}
		value := upd.Value
		v.Value = &value
	}
	return ns
}
