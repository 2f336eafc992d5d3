package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/application/session"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/pkg/auth"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

// SessionHandler handles reading-session HTTP requests. A session is
// the stateful unit: navigation, unsaved edits, throttled saves, and
// the comment slice for the current page all live on it.
type SessionHandler struct {
	manager *session.Manager
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		errors:  pkgerrors.NewErrorHandler(logger, false),
		logger:  logger,
	}
}

// OpenSessionRequest represents the request body for opening a session
type OpenSessionRequest struct {
	StoryID string `json:"story_id" validate:"required"`
}

// Open handles POST /sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	sess, err := h.manager.Create(r.Context(), userCtx.UserID, req.StoryID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	position, err := sess.CurrentPosition()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID(),
		"position":   position,
	})
}

// GetPosition handles GET /sessions/{sessionID}
func (h *SessionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	position, err := sess.CurrentPosition()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// GoToPageRequest represents the request body for page navigation
type GoToPageRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

// GoToPage handles POST /sessions/{sessionID}/goto-page
func (h *SessionHandler) GoToPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GoToPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	position, err := sess.GoToPage(r.Context(), req.Page)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// GoToNodeRequest represents the request body for node navigation
type GoToNodeRequest struct {
	NodeKey string `json:"node_key" validate:"required"`
}

// GoToNode handles POST /sessions/{sessionID}/goto-node
func (h *SessionHandler) GoToNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GoToNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	key, err := valueobjects.NewNodeKey(req.NodeKey)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	position, err := sess.GoToNode(r.Context(), key)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// FollowChoiceRequest represents the request body for following a choice
type FollowChoiceRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// FollowChoice handles POST /sessions/{sessionID}/choice
func (h *SessionHandler) FollowChoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req FollowChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	position, err := sess.FollowChoice(r.Context(), req.Index)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// GoBack handles POST /sessions/{sessionID}/back
func (h *SessionHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	position, err := sess.GoBack(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// Restart handles POST /sessions/{sessionID}/restart
func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	position, err := sess.Restart(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPosition(w, sess, position)
}

// EditPassageRequest represents the request body for editing a passage
type EditPassageRequest struct {
	NodeKey string `json:"node_key" validate:"required"`
	Body    string `json:"body"`
	Format  string `json:"format" validate:"omitempty,oneof=text markdown html"`
}

// EditPassage handles PUT /sessions/{sessionID}/passage
func (h *SessionHandler) EditPassage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req EditPassageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	key, err := valueobjects.NewNodeKey(req.NodeKey)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	format := valueobjects.PassageFormat(req.Format)
	if req.Format == "" {
		format = valueobjects.FormatPlainText
	}

	if err := sess.UpdatePassage(r.Context(), key, req.Body, format); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"node_key": req.NodeKey,
		"dirty":    sess.HasUnsavedChanges(),
	})
}

// AddSessionNodeRequest represents the request body for adding a node
// through an open session
type AddSessionNodeRequest struct {
	NodeKey  string `json:"node_key" validate:"required,min=1,max=100"`
	Body     string `json:"body"`
	Format   string `json:"format" validate:"omitempty,oneof=text markdown html"`
	IsEnding bool   `json:"is_ending"`
}

// AddNode handles POST /sessions/{sessionID}/nodes
func (h *SessionHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AddSessionNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	key, err := valueobjects.NewNodeKey(req.NodeKey)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	format := valueobjects.PassageFormat(req.Format)
	if req.Format == "" {
		format = valueobjects.FormatPlainText
	}
	passage, err := valueobjects.NewPassage(req.Body, format)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	node, err := entities.NewStoryNode(key, passage)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.IsEnding {
		node.MarkEnding()
	}

	if err := sess.AddNode(r.Context(), node); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"node_key": req.NodeKey,
		"dirty":    sess.HasUnsavedChanges(),
	})
}

// Save handles POST /sessions/{sessionID}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := sess.Save(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"result": string(result),
		"dirty":  sess.HasUnsavedChanges(),
	})
}

// GenerateRequest represents the request body for passage generation
type GenerateRequest struct {
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt" validate:"required"`
	ContentType  string  `json:"content_type" validate:"required,oneof=passage choices synopsis"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
}

// Generate handles POST /sessions/{sessionID}/generate
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	text, err := sess.GeneratePassage(r.Context(), ports.GenerationRequest{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		ContentType:  ports.GenerationContentType(req.ContentType),
		Model:        req.Model,
		Temperature:  req.Temperature,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"text": text,
	})
}

// Close handles DELETE /sessions/{sessionID}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.manager.Close(r.Context(), pathParam(r, "sessionID"), userCtx.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// session resolves the request's session, writing the error response
// itself when resolution fails
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	sess, err := h.manager.Get(pathParam(r, "sessionID"), userCtx.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) respondPosition(w http.ResponseWriter, sess *session.Session, position *session.Position) {
	comments := sess.Comments()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"position":      position,
		"comments":      toCommentViews(comments.Comments()),
		"comments_page": comments.Page(),
		"dirty":         sess.HasUnsavedChanges(),
	})
}

func (h *SessionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *SessionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
