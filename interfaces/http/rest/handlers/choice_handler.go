package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"storyloom-backend/application/services"
	"storyloom-backend/pkg/auth"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

// ChoiceHandler handles choice-linking HTTP requests
type ChoiceHandler struct {
	choices *services.ChoiceService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewChoiceHandler creates a new choice handler
func NewChoiceHandler(choices *services.ChoiceService, logger *zap.Logger) *ChoiceHandler {
	return &ChoiceHandler{
		choices: choices,
		errors:  pkgerrors.NewErrorHandler(logger, false),
		logger:  logger,
	}
}

// LinkNodesRequest represents the request body for linking nodes
type LinkNodesRequest struct {
	FromKey   string `json:"from_key" validate:"required"`
	Label     string `json:"label" validate:"required,min=1,max=200"`
	TargetKey string `json:"target_key" validate:"required"`
}

// LinkNodes handles POST /stories/{storyID}/choices
func (h *ChoiceHandler) LinkNodes(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")

	var req LinkNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.choices.LinkNodes(r.Context(), storyID, userCtx.UserID, req.FromKey, req.Label, req.TargetKey); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"story_id": storyID,
		"from":     req.FromKey,
		"target":   req.TargetKey,
	})
}

// SuggestTargets handles GET /stories/{storyID}/nodes/{nodeKey}/suggest-targets
func (h *ChoiceHandler) SuggestTargets(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetUserFromContext(r.Context()); err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")
	nodeKey := pathParam(r, "nodeKey")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	suggestions, err := h.choices.SuggestTargets(r.Context(), storyID, nodeKey, limit)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"node_key":    nodeKey,
		"suggestions": suggestions,
	})
}

func (h *ChoiceHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ChoiceHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
