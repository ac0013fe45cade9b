package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BotWeave/BotWeave/internal/models"
)

// ExecuteGroup executes a group's blocks in order starting at offset. It
// stops at the first input block, returning the accumulated messages plus
// the pending input, or follows edges into further groups until the graph
// is exhausted. A malformed block type is a defect, not a retryable
// condition.
func (e *Engine) ExecuteGroup(ctx context.Context, state models.SessionState, group *models.Group, offset int) (models.TurnResult, models.SessionState, error) {
	return e.executeGroup(ctx, state, group, offset, 0, nil)
}

func (e *Engine) executeGroup(ctx context.Context, state models.SessionState, group *models.Group, offset, depth int, acc []models.ChatMessage) (models.TurnResult, models.SessionState, error) {
	if depth > e.maxDepth {
		return models.TurnResult{}, state, fmt.Errorf("%w: depth %d in group %s", models.ErrTraversalDepth, depth, group.ID)
	}
	slog.Debug("engine.executeGroup", "groupID", group.ID, "offset", offset, "depth", depth)

	messages := acc
	for i := offset; i < len(group.Blocks); i++ {
		block := group.Blocks[i]
		nextEdgeID := block.OutgoingEdgeID

		switch {
		case block.Type.IsBubble():
			messages = append(messages, bubbleMessage(state.Flow.Variables, &block))

		case block.Type.IsInput():
			ns := state.Clone()
			ns.CurrentBlock = &models.BlockPointer{GroupID: group.ID, BlockID: block.ID}
			slog.Debug("engine.executeGroup: paused on input block", "groupID", group.ID, "blockID", block.ID)
			return models.TurnResult{
				Messages: ensureMessages(messages),
				Input:    resolvedInput(ns.Flow.Variables, &block),
			}, ns, nil

		case block.Type == models.BlockTypeCondition || block.Type == models.BlockTypeSetVariable:
			var logicEdge string
			state, logicEdge = e.executeLogicBlock(state, &block)
			if logicEdge != "" {
				nextEdgeID = logicEdge
			}

		case block.Type == models.BlockTypeFlowLink:
			return e.executeFlowLink(ctx, state, &block, depth, messages)

		default:
			return models.TurnResult{}, state, fmt.Errorf("%w: %q (block %s)", models.ErrUnknownBlockType, block.Type, block.ID)
		}

		if nextEdgeID != "" {
			return e.follow(ctx, state, nextEdgeID, depth, messages)
		}
	}
	return e.follow(ctx, state, "", depth, messages)
}

// follow resolves an edge (or drains the linked queue) and executes the
// target group. An unresolvable target is a normal terminal state.
func (e *Engine) follow(ctx context.Context, state models.SessionState, edgeID string, depth int, acc []models.ChatMessage) (models.TurnResult, models.SessionState, error) {
	group, start, ns, ok := e.nextGroup(state, edgeID)
	if !ok {
		return models.TurnResult{Messages: ensureMessages(acc)}, state, nil
	}
	return e.executeGroup(ctx, ns, group, start, depth+1, acc)
}

// executeLogicBlock runs a condition or set-variable block. Author errors in
// expressions degrade to "no branch taken" rather than failing the turn.
func (e *Engine) executeLogicBlock(state models.SessionState, block *models.Block) (models.SessionState, string) {
	switch block.Type {
	case models.BlockTypeCondition:
		for i := range block.Items {
			ok, err := EvaluateCondition(state.Flow.Variables, block.Items[i].Content)
			if err != nil {
				slog.Warn("engine.executeLogicBlock: condition evaluation failed, treating as false", "blockID", block.ID, "itemID", block.Items[i].ID, "error", err)
				continue
			}
			if ok {
				return state, block.Items[i].OutgoingEdgeID
			}
		}
		return state, ""

	case models.BlockTypeSetVariable:
		if block.Options == nil || block.Options.VariableID == "" || block.Options.Expression == "" {
			return state, ""
		}
		value, err := EvaluateExpression(state.Flow.Variables, block.Options.Expression)
		if err != nil {
			slog.Warn("engine.executeLogicBlock: set-variable expression failed, skipping", "blockID", block.ID, "error", err)
			return state, ""
		}
		return UpdateVariables(state, []VariableUpdate{{ID: block.Options.VariableID, Value: value}}), ""
	}
	return state, ""
}

// executeFlowLink splices the linked flow's graph into the session, queues a
// resume back into the current flow, and continues at the linked flow's
// entry group.
func (e *Engine) executeFlowLink(ctx context.Context, state models.SessionState, block *models.Block, depth int, acc []models.ChatMessage) (models.TurnResult, models.SessionState, error) {
	if block.Options == nil || block.Options.FlowID == "" {
		slog.Warn("engine.executeFlowLink: link block has no target flow, skipping", "blockID", block.ID)
		return e.follow(ctx, state, block.OutgoingEdgeID, depth, acc)
	}
	linked, err := e.store.GetFlow(ctx, block.Options.FlowID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			slog.Warn("engine.executeFlowLink: linked flow not found, skipping", "flowID", block.Options.FlowID, "blockID", block.ID)
			return e.follow(ctx, state, block.OutgoingEdgeID, depth, acc)
		}
		return models.TurnResult{}, state, fmt.Errorf("load linked flow %s: %w", block.Options.FlowID, err)
	}
	if len(linked.Groups) == 0 {
		slog.Warn("engine.executeFlowLink: linked flow has no groups, skipping", "flowID", linked.ID)
		return e.follow(ctx, state, block.OutgoingEdgeID, depth, acc)
	}

	ns := state.Clone()
	ns.Flow.Groups = append(append([]models.Group{}, ns.Flow.Groups...), linked.Groups...)
	ns.Flow.Edges = append(append([]models.Edge{}, ns.Flow.Edges...), linked.Edges...)
	for _, v := range linked.Variables {
		if ns.Flow.Variables.ByID(v.ID) == nil {
			ns.Flow.Variables = append(ns.Flow.Variables, v)
		}
	}
	ns.LinkedQueue = append([]models.QueuedResume{{FlowID: state.Flow.ID, EdgeID: block.OutgoingEdgeID}}, ns.LinkedQueue...)

	entry := ns.Flow.GroupByID(linked.Groups[0].ID)
	slog.Debug("engine.executeFlowLink: entering linked flow", "flowID", linked.ID, "entryGroupID", entry.ID)
	return e.executeGroup(ctx, ns, entry, 0, depth+1, acc)
}

// bubbleMessage renders a bubble block into an outbound message with
// variables substituted.
func bubbleMessage(vars models.Variables, block *models.Block) models.ChatMessage {
	var content models.BlockContent
	if block.Content != nil {
		content = *block.Content
	}
	if block.Type == models.BlockTypeImage {
		return models.ChatMessage{
			ID:      block.ID,
			Type:    models.MessageTypeImage,
			Content: models.MessageContent{URL: ParseVariables(vars, content.URL)},
		}
	}
	plain := ParseVariables(vars, content.PlainText)
	html := ParseVariables(vars, content.HTML)
	if html == "" {
		html = "<div>" + plain + "</div>"
	}
	return models.ChatMessage{
		ID:      block.ID,
		Type:    models.MessageTypeText,
		Content: models.MessageContent{PlainText: plain, HTML: html},
	}
}

// resolvedInput returns a copy of the input block with display content
// (placeholder, choice items) variable-resolved. The stored graph keeps the
// raw templates so next-turn edge matching sees the same substitution.
func resolvedInput(vars models.Variables, block *models.Block) *models.Block {
	out := *block
	if block.Options != nil {
		opts := *block.Options
		opts.Placeholder = ParseVariables(vars, opts.Placeholder)
		out.Options = &opts
	}
	if len(block.Items) > 0 {
		items := make([]models.Item, len(block.Items))
		copy(items, block.Items)
		for i := range items {
			items[i].Content = ParseVariables(vars, items[i].Content)
		}
		out.Items = items
	}
	return &out
}

func ensureMessages(msgs []models.ChatMessage) []models.ChatMessage {
	if msgs == nil {
		return []models.ChatMessage{}
	}
	return msgs
}
