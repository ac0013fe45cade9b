package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/BotWeave/BotWeave/internal/models"
)

func TestExecuteGroupUnknownBlockType(t *testing.T) {
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{
		SessionID: "s1",
		IsPreview: true,
		Flow: models.Flow{
			ID: "f1",
			Groups: []models.Group{{
				ID:     "g1",
				Blocks: []models.Block{{ID: "b1", GroupID: "g1", Type: "teleport"}},
			}},
		},
	}

	_, _, err := eng.ExecuteGroup(context.Background(), state, &state.Flow.Groups[0], 0)
	if !errors.Is(err, models.ErrUnknownBlockType) {
		t.Fatalf("expected ErrUnknownBlockType, got %v", err)
	}
	if !models.IsDefect(err) {
		t.Error("unknown block type should be classified as a defect")
	}
}

func TestExecuteGroupCyclicGraphHitsDepthBound(t *testing.T) {
	// g1 loops back into itself through e1
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{{
			ID: "g1",
			Blocks: []models.Block{
				{ID: "b1", GroupID: "g1", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "again"}, OutgoingEdgeID: "e1"},
			},
		}},
		Edges: []models.Edge{{ID: "e1", To: models.EdgeTarget{GroupID: "g1"}}},
	}
	eng := New(newFakeStore(), WithMaxDepth(10), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	_, _, err := eng.StartFlow(context.Background(), state)
	if !errors.Is(err, models.ErrTraversalDepth) {
		t.Fatalf("expected ErrTraversalDepth, got %v", err)
	}
}

func TestExecuteGroupConditionBranching(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{
				ID: "g1",
				Blocks: []models.Block{
					{
						ID:      "b-cond",
						GroupID: "g1",
						Type:    models.BlockTypeCondition,
						Items: []models.Item{
							{ID: "i1", Content: `Score == "low"`, OutgoingEdgeID: "e-low"},
							{ID: "i2", Content: `Score == "high"`, OutgoingEdgeID: "e-high"},
						},
						OutgoingEdgeID: "e-else",
					},
				},
			},
			{ID: "g-low", Blocks: []models.Block{{ID: "b-low", GroupID: "g-low", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "low"}}}},
			{ID: "g-high", Blocks: []models.Block{{ID: "b-high", GroupID: "g-high", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "high"}}}},
			{ID: "g-else", Blocks: []models.Block{{ID: "b-else", GroupID: "g-else", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "else"}}}},
		},
		Edges: []models.Edge{
			{ID: "e-low", To: models.EdgeTarget{GroupID: "g-low"}},
			{ID: "e-high", To: models.EdgeTarget{GroupID: "g-high"}},
			{ID: "e-else", To: models.EdgeTarget{GroupID: "g-else"}},
		},
	}

	tests := []struct {
		name  string
		score *string
		want  string
	}{
		{"first matching branch", strPtr("low"), "low"},
		{"second matching branch", strPtr("high"), "high"},
		{"no branch holds, default edge", strPtr("mid"), "else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flow
			f.Variables = models.Variables{{ID: "v-score", Name: "Score", Value: tt.score}}
			eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
			state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: f}

			turn, _, err := eng.StartFlow(context.Background(), state)
			if err != nil {
				t.Fatalf("StartFlow failed: %v", err)
			}
			if len(turn.Messages) != 1 || turn.Messages[0].Content.PlainText != tt.want {
				t.Errorf("expected %q, got %+v", tt.want, turn.Messages)
			}
		})
	}
}

func TestExecuteGroupConditionAuthorErrorDegrades(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{
				ID: "g1",
				Blocks: []models.Block{
					{
						ID:      "b-cond",
						GroupID: "g1",
						Type:    models.BlockTypeCondition,
						Items: []models.Item{
							{ID: "i1", Content: "((broken", OutgoingEdgeID: "e-broken"},
						},
						OutgoingEdgeID: "e-else",
					},
				},
			},
			{ID: "g-else", Blocks: []models.Block{{ID: "b-else", GroupID: "g-else", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "else"}}}},
		},
		Edges: []models.Edge{{ID: "e-else", To: models.EdgeTarget{GroupID: "g-else"}}},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, _, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("author errors must not fail the turn: %v", err)
	}
	if len(turn.Messages) != 1 || turn.Messages[0].Content.PlainText != "else" {
		t.Errorf("broken condition should fall through to the default edge, got %+v", turn.Messages)
	}
}

func TestExecuteGroupSetVariable(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{{
			ID: "g1",
			Blocks: []models.Block{
				{
					ID:      "b-set",
					GroupID: "g1",
					Type:    models.BlockTypeSetVariable,
					Options: &models.BlockOptions{VariableID: "v-greeting", Expression: `"Hello, " + Name`},
				},
				{ID: "b-say", GroupID: "g1", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "{{Greeting}}"}},
			},
		}},
		Variables: models.Variables{
			{ID: "v-name", Name: "Name", Value: strPtr("Ada")},
			{ID: "v-greeting", Name: "Greeting"},
		},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, ns, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if len(turn.Messages) != 1 || turn.Messages[0].Content.PlainText != "Hello, Ada" {
		t.Errorf("expected computed greeting, got %+v", turn.Messages)
	}
	if v := ns.Flow.Variables.ByID("v-greeting"); v.Value == nil || *v.Value != "Hello, Ada" {
		t.Error("expected variable persisted on the session state")
	}
}

func TestExecuteGroupImageBubble(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{{
			ID: "g1",
			Blocks: []models.Block{
				{ID: "b-img", GroupID: "g1", Type: models.BlockTypeImage, Content: &models.BlockContent{URL: "https://cdn.example.com/{{File}}"}},
			},
		}},
		Variables: models.Variables{{ID: "v-file", Name: "File", Value: strPtr("cat.png")}},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, _, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	msg := turn.Messages[0]
	if msg.Type != models.MessageTypeImage {
		t.Errorf("expected image message, got %q", msg.Type)
	}
	if msg.Content.URL != "https://cdn.example.com/cat.png" {
		t.Errorf("expected substituted URL, got %q", msg.Content.URL)
	}
}

func TestExecuteGroupTextBubbleHTMLFallback(t *testing.T) {
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{{
			ID: "g1",
			Blocks: []models.Block{
				{ID: "b1", GroupID: "g1", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "hi"}},
				{ID: "b2", GroupID: "g1", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "hey", HTML: "<div><b>hey</b></div>"}},
			},
		}},
	}
	eng := New(newFakeStore(), WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, _, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if turn.Messages[0].Content.HTML != "<div>hi</div>" {
		t.Errorf("expected wrapped plain text, got %q", turn.Messages[0].Content.HTML)
	}
	if turn.Messages[1].Content.HTML != "<div><b>hey</b></div>" {
		t.Errorf("expected authored HTML kept, got %q", turn.Messages[1].Content.HTML)
	}
}

func TestExecuteFlowLinkSpliceAndResume(t *testing.T) {
	st := newFakeStore()
	st.flows["sub"] = models.Flow{
		ID: "sub",
		Groups: []models.Group{{
			ID: "sg1",
			Blocks: []models.Block{
				{ID: "sb1", GroupID: "sg1", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "inside"}},
			},
		}},
		Variables: models.Variables{{ID: "v-sub", Name: "SubVar"}},
	}
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{
				ID: "g1",
				Blocks: []models.Block{
					{
						ID:             "b-link",
						GroupID:        "g1",
						Type:           models.BlockTypeFlowLink,
						Options:        &models.BlockOptions{FlowID: "sub"},
						OutgoingEdgeID: "e-after",
					},
				},
			},
			{ID: "g2", Blocks: []models.Block{{ID: "b-done", GroupID: "g2", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "done"}}}},
		},
		Edges: []models.Edge{{ID: "e-after", To: models.EdgeTarget{GroupID: "g2"}}},
	}
	eng := New(st, WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, ns, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	// Linked flow runs to exhaustion, then the parent resumes over e-after
	if len(turn.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %+v", turn.Messages)
	}
	if turn.Messages[0].Content.PlainText != "inside" || turn.Messages[1].Content.PlainText != "done" {
		t.Errorf("unexpected message order: %+v", turn.Messages)
	}
	// The spliced graph carries the linked flow's variables
	if ns.Flow.Variables.ByID("v-sub") == nil {
		t.Error("expected linked flow variables merged into the session graph")
	}
}

func TestExecuteFlowLinkPausesInsideLinkedFlow(t *testing.T) {
	st := newFakeStore()
	st.flows["sub"] = models.Flow{
		ID: "sub",
		Groups: []models.Group{{
			ID: "sg1",
			Blocks: []models.Block{
				{ID: "sb-input", GroupID: "sg1", Type: models.BlockTypeTextInput},
			},
		}},
	}
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{
				ID: "g1",
				Blocks: []models.Block{
					{ID: "b-link", GroupID: "g1", Type: models.BlockTypeFlowLink, Options: &models.BlockOptions{FlowID: "sub"}, OutgoingEdgeID: "e-after"},
				},
			},
			{ID: "g2", Blocks: []models.Block{{ID: "b-done", GroupID: "g2", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "back home"}}}},
		},
		Edges: []models.Edge{{ID: "e-after", To: models.EdgeTarget{GroupID: "g2"}}},
	}
	eng := New(st, WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, ns, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if turn.Input == nil || turn.Input.ID != "sb-input" {
		t.Fatalf("expected pause inside linked flow, got %+v", turn.Input)
	}
	if len(ns.LinkedQueue) != 1 || ns.LinkedQueue[0].EdgeID != "e-after" {
		t.Fatalf("expected queued resume into the parent, got %+v", ns.LinkedQueue)
	}

	// Replying drains the queue and resumes the parent flow
	turn2, ns2, err := eng.ContinueFlow(context.Background(), ns, "ok")
	if err != nil {
		t.Fatalf("ContinueFlow failed: %v", err)
	}
	if len(turn2.Messages) != 1 || turn2.Messages[0].Content.PlainText != "back home" {
		t.Errorf("expected parent resume message, got %+v", turn2.Messages)
	}
	if len(ns2.LinkedQueue) != 0 {
		t.Errorf("expected resume queue drained, got %+v", ns2.LinkedQueue)
	}
}

func TestExecuteFlowLinkMissingFlowSkips(t *testing.T) {
	st := newFakeStore()
	flow := models.Flow{
		ID: "f1",
		Groups: []models.Group{
			{
				ID: "g1",
				Blocks: []models.Block{
					{ID: "b-link", GroupID: "g1", Type: models.BlockTypeFlowLink, Options: &models.BlockOptions{FlowID: "gone"}, OutgoingEdgeID: "e-after"},
				},
			},
			{ID: "g2", Blocks: []models.Block{{ID: "b-done", GroupID: "g2", Type: models.BlockTypeText, Content: &models.BlockContent{PlainText: "done"}}}},
		},
		Edges: []models.Edge{{ID: "e-after", To: models.EdgeTarget{GroupID: "g2"}}},
	}
	eng := New(st, WithSizeFetcher(&fakeFetcher{}))
	state := models.SessionState{SessionID: "s1", IsPreview: true, Flow: flow}

	turn, _, err := eng.StartFlow(context.Background(), state)
	if err != nil {
		t.Fatalf("missing linked flow must not fail the turn: %v", err)
	}
	if len(turn.Messages) != 1 || turn.Messages[0].Content.PlainText != "done" {
		t.Errorf("expected the default edge followed, got %+v", turn.Messages)
	}
}
