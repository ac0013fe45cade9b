// Package models defines the core data structures for BotWeave.
//
// This file holds the per-conversation session state threaded through each
// engine turn, plus the turn result types returned to the transport layer.
package models

import "time"

// BlockPointer locates a block within the session's flow graph.
type BlockPointer struct {
	GroupID string `json:"groupId"`
	BlockID string `json:"blockId"`
}

// ResultHandle is the session's view of its persisted result row. It is nil
// in preview mode.
type ResultHandle struct {
	ID         string `json:"id"`
	HasStarted bool   `json:"hasStarted"`
}

// QueuedResume is a pending continuation into a parent flow, recorded when a
// flow-link block splices a linked flow into the session. EdgeID names the
// edge to follow in the parent once the linked flow is exhausted.
type QueuedResume struct {
	FlowID string `json:"flowId"`
	EdgeID string `json:"edgeId,omitempty"`
}

// SessionState is the mutable execution context of one conversation. The
// engine never mutates a SessionState in place; every transition returns a
// fresh value so concurrent turns on different sessions share nothing.
type SessionState struct {
	SessionID string `json:"sessionId"`
	// Flow is the resolved graph, possibly merged across linked flows.
	Flow Flow `json:"flow"`
	// CurrentBlock points at the input block the session is paused on.
	CurrentBlock *BlockPointer `json:"currentBlock,omitempty"`
	// Result is absent in preview mode.
	Result *ResultHandle `json:"result,omitempty"`
	// LinkedQueue holds pending resumes into parent flows.
	LinkedQueue []QueuedResume `json:"linkedQueue,omitempty"`
	IsPreview   bool           `json:"isPreview,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the state's session-owned collections. Flow
// groups and edges are treated as immutable once authored and are shared;
// variables and the linked queue are copied because turns rewrite them.
func (s SessionState) Clone() SessionState {
	out := s
	if s.CurrentBlock != nil {
		cb := *s.CurrentBlock
		out.CurrentBlock = &cb
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Flow.Variables != nil {
		vars := make(Variables, len(s.Flow.Variables))
		copy(vars, s.Flow.Variables)
		out.Flow.Variables = vars
	}
	if s.LinkedQueue != nil {
		q := make([]QueuedResume, len(s.LinkedQueue))
		copy(q, s.LinkedQueue)
		out.LinkedQueue = q
	}
	return out
}

// MessageType identifies the renderable kind of an outbound chat message.
type MessageType string

const (
	// MessageTypeText is a plain text bubble.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image bubble.
	MessageTypeImage MessageType = "image"
)

// MessageContent is the payload of an outbound chat message.
type MessageContent struct {
	PlainText string `json:"plainText,omitempty"`
	HTML      string `json:"html,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ChatMessage is one outbound message produced by a turn. ID is the ID of
// the block that produced it.
type ChatMessage struct {
	ID      string         `json:"id"`
	Type    MessageType    `json:"type"`
	Content MessageContent `json:"content"`
}

// TurnResult is what one engine invocation hands back to the transport:
// the produced messages plus, when the flow paused, the input block awaiting
// a reply. An empty Messages with a nil Input means the flow is exhausted.
type TurnResult struct {
	Messages []ChatMessage `json:"messages"`
	Input    *Block        `json:"input,omitempty"`
}

// Result is the persisted record of one end-user run through a flow.
type Result struct {
	ID          string    `json:"id"`
	FlowID      string    `json:"flowId"`
	HasStarted  bool      `json:"hasStarted"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ResultUpdate is a partial, idempotent status update applied to a persisted
// result. Nil fields are left untouched.
type ResultUpdate struct {
	HasStarted  *bool `json:"hasStarted,omitempty"`
	IsCompleted *bool `json:"isCompleted,omitempty"`
}

// Answer is the persisted reply to one input block, upserted on the
// (ResultID, GroupID, BlockID) key. StorageUsed is only non-zero for file
// uploads whose sizes could be fetched.
type Answer struct {
	ResultID    string `json:"resultId"`
	GroupID     string `json:"groupId"`
	BlockID     string `json:"blockId"`
	Content     string `json:"content"`
	VariableID  string `json:"variableId,omitempty"`
	StorageUsed int64  `json:"storageUsed,omitempty"`
}
