package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/session"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/pkg/auth"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

// CommentHandler handles comment operations on an open session. All
// writes go through the session's comment slice so the cached page
// stays the persisted truth.
type CommentHandler struct {
	manager *session.Manager
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(manager *session.Manager, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		manager: manager,
		errors:  pkgerrors.NewErrorHandler(logger, false),
		logger:  logger,
	}
}

// CommentView is the JSON shape of one comment
type CommentView struct {
	ID        string `json:"id"`
	StoryID   string `json:"story_id"`
	Page      int    `json:"page"`
	NodeKey   string `json:"node_key"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
}

func toCommentViews(comments []*entities.Comment) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{
			ID:        c.ID(),
			StoryID:   c.StoryID(),
			Page:      c.Page(),
			NodeKey:   c.NodeKey().String(),
			AuthorID:  c.AuthorID(),
			Text:      c.Text(),
			Category:  string(c.Category()),
			CreatedAt: c.CreatedAt().Format(time.RFC3339),
		})
	}
	return views
}

// List handles GET /sessions/{sessionID}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	comments := sess.Comments()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"page":     comments.Page(),
		"comments": toCommentViews(comments.Comments()),
	})
}

// AddCommentRequest represents the request body for adding a comment
type AddCommentRequest struct {
	NodeKey  string `json:"node_key" validate:"required"`
	Text     string `json:"text" validate:"required,max=2000"`
	Category string `json:"category" validate:"required,oneof=edit suggestion spelling error other"`
}

// Add handles POST /sessions/{sessionID}/comments
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	sess, userCtx, ok := h.sessionWithUser(w, r)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	nodeKey, err := valueobjects.NewNodeKey(req.NodeKey)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	comment, err := sess.Comments().Add(r.Context(), nodeKey, userCtx.UserID, req.Text, entities.CommentCategory(req.Category))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	views := toCommentViews([]*entities.Comment{comment})
	h.respondJSON(w, http.StatusCreated, views[0])
}

// UpdateCommentRequest represents the request body for amending a comment
type UpdateCommentRequest struct {
	Text     string `json:"text" validate:"required,max=2000"`
	Category string `json:"category" validate:"required,oneof=edit suggestion spelling error other"`
}

// Update handles PUT /sessions/{sessionID}/comments/{commentID}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, userCtx, ok := h.sessionWithUser(w, r)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	commentID := pathParam(r, "commentID")
	err := sess.Comments().Update(r.Context(), commentID, userCtx.UserID, req.Text, entities.CommentCategory(req.Category))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id": commentID,
	})
}

// Delete handles DELETE /sessions/{sessionID}/comments/{commentID}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, userCtx, ok := h.sessionWithUser(w, r)
	if !ok {
		return
	}

	commentID := pathParam(r, "commentID")
	if err := sess.Comments().Delete(r.Context(), commentID, userCtx.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CommentHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, _, ok := h.sessionWithUser(w, r)
	return sess, ok
}

func (h *CommentHandler) sessionWithUser(w http.ResponseWriter, r *http.Request) (*session.Session, *auth.UserContext, bool) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, nil, false
	}

	sess, err := h.manager.Get(pathParam(r, "sessionID"), userCtx.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, nil, false
	}
	return sess, userCtx, true
}

func (h *CommentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *CommentHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
