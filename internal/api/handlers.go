// Package api provides HTTP handlers for BotWeave endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/BotWeave/BotWeave/internal/session"
	"github.com/BotWeave/BotWeave/internal/util"
)

// StartSessionRequest begins a conversation against a stored flow.
type StartSessionRequest struct {
	FlowID    string `json:"flowId"`
	IsPreview bool   `json:"isPreview,omitempty"`
}

// ContinueSessionRequest carries one user reply for a paused session.
type ContinueSessionRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the transport view of one engine turn.
type ChatResponse struct {
	SessionID string               `json:"sessionId"`
	Messages  []models.ChatMessage `json:"messages"`
	Input     *models.Block        `json:"input,omitempty"`
}

func (s *Server) saveFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.saveFlowHandler: processing save flow request", "path", r.URL.Path)

	var flow models.Flow
	if err := json.NewDecoder(r.Body).Decode(&flow); err != nil {
		slog.Warn("Server.saveFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if flow.ID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: id"))
		return
	}
	if msg := validateFlow(&flow); msg != "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(msg))
		return
	}
	if err := s.store.SaveFlow(r.Context(), flow); err != nil {
		slog.Error("Server.saveFlowHandler: failed to save flow", "error", err, "flowID", flow.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
		return
	}
	slog.Info("Server.saveFlowHandler: flow saved", "flowID", flow.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow saved", nil))
}

func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")
	flow, err := s.store.GetFlow(r.Context(), flowID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	if err != nil {
		slog.Error("Server.getFlowHandler: failed to load flow", "error", err, "flowID", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load flow"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flow))
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startSessionHandler: processing start request")

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.FlowID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: flowId"))
		return
	}

	flow, err := s.store.GetFlow(r.Context(), req.FlowID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to load flow", "error", err, "flowID", req.FlowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load flow"))
		return
	}

	state := models.SessionState{
		SessionID: util.GenerateSessionID(),
		Flow:      flow,
		IsPreview: req.IsPreview,
	}
	turn, newState, err := s.engine.StartFlow(r.Context(), state)
	if err != nil {
		slog.Error("Server.startSessionHandler: engine failed", "error", err, "flowID", req.FlowID)
		turnsTotal.WithLabelValues(outcomeError).Inc()
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}
	if err := s.sessions.Save(r.Context(), newState); err != nil {
		slog.Error("Server.startSessionHandler: failed to save session", "error", err, "sessionID", newState.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	recordTurn(turn)
	slog.Info("Server.startSessionHandler: session started", "sessionID", newState.SessionID, "flowID", req.FlowID, "messages", len(turn.Messages))
	writeJSONResponse(w, http.StatusOK, models.Success(ChatResponse{
		SessionID: newState.SessionID,
		Messages:  turn.Messages,
		Input:     turn.Input,
	}))
}

func (s *Server) continueSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")
	slog.Debug("Server.continueSessionHandler: processing continue request", "sessionID", sessionID)

	var req ContinueSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.continueSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if len(req.Message) > models.MaxReplyLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message exceeds maximum length"))
		return
	}

	state, err := s.sessions.Load(r.Context(), sessionID)
	if errors.Is(err, session.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err != nil {
		slog.Error("Server.continueSessionHandler: failed to load session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	turn, newState, err := s.engine.ContinueFlow(r.Context(), state, req.Message)
	if err != nil {
		// Defect errors mean the stored session pointer or graph is corrupt;
		// both classes surface as internal errors at this boundary.
		slog.Error("Server.continueSessionHandler: engine failed", "error", err, "sessionID", sessionID, "defect", models.IsDefect(err))
		turnsTotal.WithLabelValues(outcomeError).Inc()
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process reply"))
		return
	}
	if err := s.sessions.Save(r.Context(), newState); err != nil {
		slog.Error("Server.continueSessionHandler: failed to save session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	recordTurn(turn)
	slog.Debug("Server.continueSessionHandler: turn processed", "sessionID", sessionID, "messages", len(turn.Messages), "paused", turn.Input != nil)
	writeJSONResponse(w, http.StatusOK, models.Success(ChatResponse{
		SessionID: sessionID,
		Messages:  turn.Messages,
		Input:     turn.Input,
	}))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// validateFlow rejects author mistakes a store round trip would otherwise
// preserve. Returns an empty string when the flow is acceptable.
func validateFlow(flow *models.Flow) string {
	for gi := range flow.Groups {
		group := &flow.Groups[gi]
		if group.ID == "" {
			return "Every group requires an id"
		}
		for bi := range group.Blocks {
			block := &group.Blocks[bi]
			if block.ID == "" {
				return "Every block requires an id"
			}
			if block.Options != nil && len(block.Options.RetryMessageContent) > models.MaxRetryMessageLength {
				return "Retry message exceeds maximum length"
			}
		}
	}
	return ""
}
