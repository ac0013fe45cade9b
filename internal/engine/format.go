// Package engine implements the flow execution engine.
//
// This file holds the reply formatter/validator: per input type handlers
// registered in a dispatch table, so new input variants plug in without
// touching the traversal skeleton.
package engine

import (
	"net/mail"
	"net/url"

	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/nyaruka/phonenumbers"
)

// InputHandler normalizes and validates replies for one input block type.
type InputHandler interface {
	// Format rewrites a raw reply into its canonical form. It never
	// rejects; validation happens separately.
	Format(raw string) string
	// Validate reports whether a formatted reply is acceptable.
	Validate(reply string, block *models.Block) bool
	// CanSkip reports whether an empty reply advances past the block.
	CanSkip() bool
}

var inputRegistry = make(map[models.BlockType]InputHandler)

// RegisterInput associates an input block type with a handler. Types without
// a registered handler fall back to a pass-through handler that accepts any
// non-empty reply.
func RegisterInput(t models.BlockType, h InputHandler) {
	inputRegistry[t] = h
}

func handlerFor(t models.BlockType) InputHandler {
	if h, ok := inputRegistry[t]; ok {
		return h
	}
	return passthroughHandler{}
}

func init() {
	RegisterInput(models.BlockTypeTextInput, passthroughHandler{})
	RegisterInput(models.BlockTypeNumberInput, passthroughHandler{})
	RegisterInput(models.BlockTypeChoiceInput, passthroughHandler{})
	RegisterInput(models.BlockTypeEmailInput, emailHandler{})
	RegisterInput(models.BlockTypePhoneInput, phoneHandler{})
	RegisterInput(models.BlockTypeURLInput, urlHandler{})
	RegisterInput(models.BlockTypeFileInput, fileHandler{})
}

// FormatReply normalizes a raw reply for the given block type. An empty raw
// reply yields an empty string, meaning "no usable reply".
func FormatReply(raw string, t models.BlockType) string {
	if raw == "" {
		return ""
	}
	return handlerFor(t).Format(raw)
}

// IsReplyValid reports whether a formatted reply satisfies the block's input
// type. Types without a specific validator are unconditionally valid.
func IsReplyValid(reply string, block *models.Block) bool {
	return handlerFor(block.Type).Validate(reply, block)
}

// CanSkip reports whether the input type advances past an empty reply. Only
// file uploads are skippable.
func CanSkip(t models.BlockType) bool {
	return handlerFor(t).CanSkip()
}

// passthroughHandler accepts anything. It backs text, number and choice
// inputs as well as unregistered input types.
type passthroughHandler struct{}

func (passthroughHandler) Format(raw string) string { return raw }

func (passthroughHandler) Validate(string, *models.Block) bool { return true }

func (passthroughHandler) CanSkip() bool { return false }

type emailHandler struct{ passthroughHandler }

func (emailHandler) Validate(reply string, _ *models.Block) bool {
	_, err := mail.ParseAddress(reply)
	return err == nil
}

// phoneHandler canonicalizes replies to E.164. Numbers that cannot be parsed
// are passed through unchanged so validation rejects them with the block's
// retry message instead of a formatting failure.
type phoneHandler struct{ passthroughHandler }

func (phoneHandler) Format(raw string) string {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func (phoneHandler) Validate(reply string, _ *models.Block) bool {
	num, err := phonenumbers.Parse(reply, "")
	return err == nil && phonenumbers.IsPossibleNumber(num)
}

type urlHandler struct{ passthroughHandler }

func (urlHandler) Validate(reply string, _ *models.Block) bool {
	u, err := url.Parse(reply)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// fileHandler is the only skippable input: an empty reply means the user
// declined the upload.
type fileHandler struct{ passthroughHandler }

func (fileHandler) CanSkip() bool { return true }
