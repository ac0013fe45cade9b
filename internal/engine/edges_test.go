package engine

import (
	"testing"

	"github.com/BotWeave/BotWeave/internal/models"
)

func TestResolveOutgoingEdge(t *testing.T) {
	vars := models.Variables{{ID: "v1", Name: "Color", Value: strPtr("Red")}}

	choiceBlock := func(multiple bool) *models.Block {
		return &models.Block{
			ID:   "b-choice",
			Type: models.BlockTypeChoiceInput,
			Items: []models.Item{
				{ID: "i1", Content: "{{Color}}", OutgoingEdgeID: "e-red"},
				{ID: "i2", Content: "Blue"},
				{ID: "i3", Content: "Blue", OutgoingEdgeID: "e-late-blue"},
			},
			Options:        &models.BlockOptions{IsMultipleChoice: multiple},
			OutgoingEdgeID: "e-default",
		}
	}

	tests := []struct {
		name  string
		block *models.Block
		reply string
		want  string
	}{
		{"item content matched after substitution", choiceBlock(false), "Red", "e-red"},
		{"first match without edge wins and falls back", choiceBlock(false), "Blue", "e-default"},
		{"no item matches", choiceBlock(false), "Green", "e-default"},
		{"empty reply skips item matching", choiceBlock(false), "", "e-default"},
		{"multiple choice ignores item edges", choiceBlock(true), "Red", "e-default"},
		{
			"non-choice block uses default edge",
			&models.Block{ID: "b-text", Type: models.BlockTypeTextInput, OutgoingEdgeID: "e-default"},
			"Red",
			"e-default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveOutgoingEdge(vars, tt.block, tt.reply); got != tt.want {
				t.Errorf("ResolveOutgoingEdge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextGroupResolvesEdgeTarget(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{ID: "g1", Blocks: []models.Block{{ID: "b1", GroupID: "g1", Type: models.BlockTypeText}}},
			{ID: "g2", Blocks: []models.Block{
				{ID: "b2", GroupID: "g2", Type: models.BlockTypeText},
				{ID: "b3", GroupID: "g2", Type: models.BlockTypeText},
			}},
		},
		Edges: []models.Edge{
			{ID: "e1", To: models.EdgeTarget{GroupID: "g2"}},
			{ID: "e2", To: models.EdgeTarget{GroupID: "g2", BlockID: "b3"}},
			{ID: "e-dangling", To: models.EdgeTarget{GroupID: "gone"}},
		},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", Flow: flow}

	group, start, _, ok := eng.nextGroup(state, "e1")
	if !ok || group.ID != "g2" || start != 0 {
		t.Errorf("e1 should resolve to g2 at block 0, got %v %d %v", group, start, ok)
	}

	group, start, _, ok = eng.nextGroup(state, "e2")
	if !ok || group.ID != "g2" || start != 1 {
		t.Errorf("e2 should resolve to g2 at block 1, got %v %d %v", group, start, ok)
	}

	if _, _, _, ok = eng.nextGroup(state, "e-dangling"); ok {
		t.Error("edge into a missing group must not resolve")
	}
	if _, _, _, ok = eng.nextGroup(state, "missing-edge"); ok {
		t.Error("unknown edge must not resolve")
	}
	if _, _, _, ok = eng.nextGroup(state, ""); ok {
		t.Error("empty edge with empty queue must not resolve")
	}
}

func TestNextGroupDrainsLinkedQueue(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{ID: "g1", Blocks: []models.Block{{ID: "b1", GroupID: "g1", Type: models.BlockTypeText}}},
		},
		Edges: []models.Edge{{ID: "e1", To: models.EdgeTarget{GroupID: "g1"}}},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{
		SessionID: "s1",
		Flow:      flow,
		LinkedQueue: []models.QueuedResume{
			{FlowID: "sub", EdgeID: ""},  // linked flow with no continuation
			{FlowID: "f1", EdgeID: "e1"}, // resumes the parent
		},
	}

	group, _, ns, ok := eng.nextGroup(state, "")
	if !ok || group.ID != "g1" {
		t.Fatalf("expected queue drained through to e1, got %v %v", group, ok)
	}
	if len(ns.LinkedQueue) != 0 {
		t.Errorf("expected both queue entries consumed, got %+v", ns.LinkedQueue)
	}
	if len(state.LinkedQueue) != 2 {
		t.Error("input state queue must not be mutated")
	}
}
