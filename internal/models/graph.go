// Package models defines the core data structures for BotWeave.
//
// It includes the flow graph (groups, blocks, edges, variables), session
// state, and chat turn types shared across modules.
package models

// BlockType identifies the behavior of a block within a group.
type BlockType string

const (
	// BlockTypeText renders a text bubble to the end user.
	BlockTypeText BlockType = "text"
	// BlockTypeImage renders an image bubble to the end user.
	BlockTypeImage BlockType = "image"

	// BlockTypeTextInput pauses the flow awaiting a free-form text reply.
	BlockTypeTextInput BlockType = "text input"
	// BlockTypeNumberInput pauses the flow awaiting a numeric reply.
	BlockTypeNumberInput BlockType = "number input"
	// BlockTypeEmailInput pauses the flow awaiting an email address.
	BlockTypeEmailInput BlockType = "email input"
	// BlockTypePhoneInput pauses the flow awaiting a phone number.
	BlockTypePhoneInput BlockType = "phone number input"
	// BlockTypeURLInput pauses the flow awaiting a URL.
	BlockTypeURLInput BlockType = "url input"
	// BlockTypeChoiceInput pauses the flow awaiting a selection among items.
	BlockTypeChoiceInput BlockType = "choice input"
	// BlockTypeFileInput pauses the flow awaiting uploaded file URLs. It is
	// the only input type that may be skipped with an empty reply.
	BlockTypeFileInput BlockType = "file input"

	// BlockTypeCondition evaluates item expressions and branches on the
	// first one that holds.
	BlockTypeCondition BlockType = "condition"
	// BlockTypeSetVariable assigns a value to a flow variable.
	BlockTypeSetVariable BlockType = "set variable"
	// BlockTypeFlowLink splices a linked flow into the session and resumes
	// the current flow once the linked one is exhausted.
	BlockTypeFlowLink BlockType = "flow link"
)

// IsInput reports whether the block type pauses execution awaiting a reply.
func (t BlockType) IsInput() bool {
	switch t {
	case BlockTypeTextInput, BlockTypeNumberInput, BlockTypeEmailInput,
		BlockTypePhoneInput, BlockTypeURLInput, BlockTypeChoiceInput,
		BlockTypeFileInput:
		return true
	default:
		return false
	}
}

// IsBubble reports whether the block type emits an outbound message.
func (t BlockType) IsBubble() bool {
	return t == BlockTypeText || t == BlockTypeImage
}

// Flow is the authored graph of groups, blocks and edges defining a bot.
// A session may hold a flow merged from several linked flows; block and
// edge IDs are unique across the merged graph.
type Flow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Groups    []Group   `json:"groups"`
	Edges     []Edge    `json:"edges,omitempty"`
	Variables Variables `json:"variables,omitempty"`
}

// GroupByID returns the group with the given ID, or nil.
func (f *Flow) GroupByID(id string) *Group {
	for i := range f.Groups {
		if f.Groups[i].ID == id {
			return &f.Groups[i]
		}
	}
	return nil
}

// EdgeByID returns the edge with the given ID, or nil.
func (f *Flow) EdgeByID(id string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].ID == id {
			return &f.Edges[i]
		}
	}
	return nil
}

// Group is an ordered sequence of blocks, the unit of traversal between
// pauses.
type Group struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Blocks []Block `json:"blocks"`
}

// BlockIndex returns the position of the block with the given ID within the
// group, or -1 when absent.
func (g *Group) BlockIndex(id string) int {
	for i := range g.Blocks {
		if g.Blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// Edge is a directed link from a block (or a choice/condition item) to a
// target group.
type Edge struct {
	ID string     `json:"id"`
	To EdgeTarget `json:"to"`
}

// EdgeTarget names the group an edge points at. BlockID, when set, selects
// the block to resume at within the target group.
type EdgeTarget struct {
	GroupID string `json:"groupId"`
	BlockID string `json:"blockId,omitempty"`
}

// Block is a single step within a group. The type tag selects which of the
// optional fields are meaningful; the engine dispatches on it.
type Block struct {
	ID      string    `json:"id"`
	GroupID string    `json:"groupId"`
	Type    BlockType `json:"type"`

	// Content carries bubble payloads (text, image URL).
	Content *BlockContent `json:"content,omitempty"`
	// Options carries input and logic configuration.
	Options *BlockOptions `json:"options,omitempty"`
	// Items carries choice options or condition branches.
	Items []Item `json:"items,omitempty"`

	// OutgoingEdgeID is the default continuation once the block completes.
	// Empty means "next block in the group" or, at the end of a group,
	// "flow exhausted".
	OutgoingEdgeID string `json:"outgoingEdgeId,omitempty"`
}

// BlockContent is the renderable payload of a bubble block.
type BlockContent struct {
	PlainText string `json:"plainText,omitempty"`
	HTML      string `json:"html,omitempty"`
	URL       string `json:"url,omitempty"`
}

// BlockOptions configures input validation and logic block behavior.
type BlockOptions struct {
	// VariableID binds the validated reply (or computed value) to a flow
	// variable.
	VariableID string `json:"variableId,omitempty"`
	// Placeholder is shown in the input widget.
	Placeholder string `json:"placeholder,omitempty"`
	// RetryMessageContent overrides the default invalid-reply prompt.
	RetryMessageContent string `json:"retryMessageContent,omitempty"`
	// IsMultipleChoice disables per-item edge overrides on choice inputs.
	IsMultipleChoice bool `json:"isMultipleChoice,omitempty"`
	// Expression is evaluated by set-variable blocks; the result becomes
	// the bound variable's value.
	Expression string `json:"expression,omitempty"`
	// FlowID names the flow a flow-link block splices in.
	FlowID string `json:"flowId,omitempty"`
}

// Item is a selectable choice option or a condition branch. For condition
// blocks, Content holds the boolean expression guarding the branch.
type Item struct {
	ID             string `json:"id"`
	Content        string `json:"content,omitempty"`
	OutgoingEdgeID string `json:"outgoingEdgeId,omitempty"`
}

// Variable is a named slot in the flow. Value is nil until something sets
// it.
type Variable struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

// Variables is the variable collection of a flow.
type Variables []Variable

// ByID returns the variable with the given ID, or nil.
func (vs Variables) ByID(id string) *Variable {
	for i := range vs {
		if vs[i].ID == id {
			return &vs[i]
		}
	}
	return nil
}

// ByName returns the variable with the given name, or nil.
func (vs Variables) ByName(name string) *Variable {
	for i := range vs {
		if vs[i].Name == name {
			return &vs[i]
		}
	}
	return nil
}
