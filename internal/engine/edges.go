package engine

import (
	"github.com/BotWeave/BotWeave/internal/models"
)

// ResolveOutgoingEdge determines the edge to follow once an input block
// completes. For single-select choice blocks the reply is matched against
// each item's variable-resolved content; the first matching item's edge
// wins when declared. Everything else falls back to the block's default
// outgoing edge, which may be empty.
func ResolveOutgoingEdge(vars models.Variables, block *models.Block, reply string) string {
	if block.Type == models.BlockTypeChoiceInput && reply != "" &&
		(block.Options == nil || !block.Options.IsMultipleChoice) {
		for i := range block.Items {
			if ParseVariables(vars, block.Items[i].Content) != reply {
				continue
			}
			if block.Items[i].OutgoingEdgeID != "" {
				return block.Items[i].OutgoingEdgeID
			}
			break
		}
	}
	return block.OutgoingEdgeID
}

// nextGroup resolves the target group of an edge. An empty edge ID drains
// the linked-flow queue: the next queued resume's edge is followed in the
// spliced graph. The returned state has the consumed queue entry removed.
func (e *Engine) nextGroup(state models.SessionState, edgeID string) (*models.Group, int, models.SessionState, bool) {
	if edgeID == "" {
		if len(state.LinkedQueue) == 0 {
			return nil, 0, state, false
		}
		resume := state.LinkedQueue[0]
		ns := state.Clone()
		ns.LinkedQueue = ns.LinkedQueue[1:]
		return e.nextGroup(ns, resume.EdgeID)
	}
	edge := state.Flow.EdgeByID(edgeID)
	if edge == nil {
		return nil, 0, state, false
	}
	group := state.Flow.GroupByID(edge.To.GroupID)
	if group == nil {
		return nil, 0, state, false
	}
	start := 0
	if edge.To.BlockID != "" {
		if i := group.BlockIndex(edge.To.BlockID); i >= 0 {
			start = i
		}
	}
	return group, start, state, true
}
