package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/google/uuid"
)

// ContinueFlow processes one user reply against a session paused on an input
// block. It returns the turn's outbound messages (or a retry prompt), the
// new session state, and the pending input when the flow paused again.
//
// A missing or non-input current block is a defect: the stored session
// pointer is corrupt or stale. Invalid replies are not errors; they produce
// a retry prompt and leave the state untouched.
func (e *Engine) ContinueFlow(ctx context.Context, state models.SessionState, reply string) (models.TurnResult, models.SessionState, error) {
	slog.Debug("engine.ContinueFlow", "sessionID", state.SessionID, "hasReply", reply != "")

	if state.CurrentBlock == nil {
		return models.TurnResult{}, state, fmt.Errorf("%w: session %s has no current block", models.ErrCurrentBlockNotFound, state.SessionID)
	}
	group := state.Flow.GroupByID(state.CurrentBlock.GroupID)
	if group == nil {
		return models.TurnResult{}, state, fmt.Errorf("%w: group %s", models.ErrCurrentBlockNotFound, state.CurrentBlock.GroupID)
	}
	blockIndex := group.BlockIndex(state.CurrentBlock.BlockID)
	if blockIndex < 0 {
		return models.TurnResult{}, state, fmt.Errorf("%w: block %s in group %s", models.ErrCurrentBlockNotFound, state.CurrentBlock.BlockID, group.ID)
	}
	block := group.Blocks[blockIndex]
	if !block.Type.IsInput() {
		return models.TurnResult{}, state, fmt.Errorf("%w: block %s is %q", models.ErrNotInputBlock, block.ID, block.Type)
	}

	formatted := FormatReply(reply, block.Type)
	if formatted == "" && !CanSkip(block.Type) {
		slog.Debug("engine.ContinueFlow: empty reply on non-skippable input, retrying", "blockID", block.ID)
		return retryTurn(&block), state, nil
	}
	if formatted != "" && !IsReplyValid(formatted, &block) {
		slog.Debug("engine.ContinueFlow: invalid reply, retrying", "blockID", block.ID, "blockType", block.Type)
		return retryTurn(&block), state, nil
	}

	newState, err := e.processAndSaveAnswer(ctx, state, &block, formatted)
	if err != nil {
		return models.TurnResult{}, state, err
	}

	groupHasMoreBlocks := blockIndex < len(group.Blocks)-1
	nextEdgeID := ResolveOutgoingEdge(newState.Flow.Variables, &block, formatted)

	if groupHasMoreBlocks && nextEdgeID == "" {
		result, ns, execErr := e.executeGroup(ctx, newState, group, blockIndex+1, 0, nil)
		return e.finishTurn(ctx, result, ns, execErr)
	}
	if nextEdgeID == "" && len(newState.LinkedQueue) == 0 {
		return e.finishTurn(ctx, models.TurnResult{Messages: []models.ChatMessage{}}, newState, nil)
	}

	nextGroup, start, ns, ok := e.nextGroup(newState, nextEdgeID)
	if !ok {
		return e.finishTurn(ctx, models.TurnResult{Messages: []models.ChatMessage{}}, newState, nil)
	}
	result, ns, execErr := e.executeGroup(ctx, ns, nextGroup, start, 0, nil)
	return e.finishTurn(ctx, result, ns, execErr)
}

// StartFlow executes the entry group of a fresh session with no reply,
// creating a result row unless the session is a preview.
func (e *Engine) StartFlow(ctx context.Context, state models.SessionState) (models.TurnResult, models.SessionState, error) {
	slog.Debug("engine.StartFlow", "sessionID", state.SessionID, "flowID", state.Flow.ID, "isPreview", state.IsPreview)

	if len(state.Flow.Groups) == 0 {
		return models.TurnResult{}, state, fmt.Errorf("%w: flow %s", models.ErrEmptyFlow, state.Flow.ID)
	}

	ns := state
	if !state.IsPreview && state.Result == nil {
		result := models.Result{
			ID:        uuid.NewString(),
			FlowID:    state.Flow.ID,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.CreateResult(ctx, result); err != nil {
			return models.TurnResult{}, state, fmt.Errorf("create result for flow %s: %w", state.Flow.ID, err)
		}
		ns = state.Clone()
		ns.Result = &models.ResultHandle{ID: result.ID}
		slog.Debug("engine.StartFlow: result created", "resultID", result.ID)
	}

	turn, ns, err := e.executeGroup(ctx, ns, &ns.Flow.Groups[0], 0, 0, nil)
	return e.finishTurn(ctx, turn, ns, err)
}

// processAndSaveAnswer persists the formatted reply, marks the result as
// started, and applies the block's variable binding. An empty reply (skipped
// file input) leaves everything untouched.
func (e *Engine) processAndSaveAnswer(ctx context.Context, state models.SessionState, block *models.Block, reply string) (models.SessionState, error) {
	if reply == "" {
		return state, nil
	}
	if !state.IsPreview && state.Result != nil {
		if err := e.recorder.RecordAnswer(ctx, state.Result.ID, block, reply); err != nil {
			return state, err
		}
		if !state.Result.HasStarted {
			if err := e.recorder.MarkResultStarted(ctx, state.Result.ID); err != nil {
				return state, err
			}
		}
	}

	ns := state
	if block.Options != nil && block.Options.VariableID != "" {
		if v := state.Flow.Variables.ByID(block.Options.VariableID); v != nil {
			ns = UpdateVariables(state, []VariableUpdate{{ID: v.ID, Value: reply}})
		}
	}
	if ns.Result != nil && !ns.Result.HasStarted {
		ns = ns.Clone()
		ns.Result.HasStarted = true
	}
	return ns, nil
}

// finishTurn applies end-of-turn bookkeeping: when the flow is exhausted the
// session pointer is cleared and the result marked completed.
func (e *Engine) finishTurn(ctx context.Context, turn models.TurnResult, state models.SessionState, err error) (models.TurnResult, models.SessionState, error) {
	if err != nil {
		return models.TurnResult{}, state, err
	}
	if turn.Input != nil {
		return turn, state, nil
	}
	ns := state.Clone()
	ns.CurrentBlock = nil
	if !ns.IsPreview && ns.Result != nil {
		if markErr := e.recorder.MarkResultCompleted(ctx, ns.Result.ID); markErr != nil {
			return models.TurnResult{}, state, markErr
		}
	}
	slog.Debug("engine.finishTurn: flow exhausted", "sessionID", ns.SessionID, "messages", len(turn.Messages))
	return turn, ns, nil
}

// retryTurn builds the invalid-reply response: the block's configured retry
// text plus the same input block, with no state mutation.
func retryTurn(block *models.Block) models.TurnResult {
	retryMessage := models.DefaultRetryMessage
	if block.Options != nil && block.Options.RetryMessageContent != "" {
		retryMessage = block.Options.RetryMessageContent
	}
	return models.TurnResult{
		Messages: []models.ChatMessage{{
			ID:   block.ID,
			Type: models.MessageTypeText,
			Content: models.MessageContent{
				PlainText: retryMessage,
				HTML:      "<div>" + retryMessage + "</div>",
			},
		}},
		Input: block,
	}
}
