package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	"storyloom-backend/application/commands/bus"
	commandhandlers "storyloom-backend/application/commands/handlers"
	"storyloom-backend/application/queries"
	querybus "storyloom-backend/application/queries/bus"
	"storyloom-backend/application/sagas"
	"storyloom-backend/pkg/auth"
	"storyloom-backend/pkg/common"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	createStory *commandhandlers.CreateStoryHandler
	importStory *commandhandlers.ImportStoryHandler
	publishSaga *sagas.PublishStorySaga
	commandBus  *bus.CommandBus
	queryBus    *querybus.QueryBus
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(
	createStory *commandhandlers.CreateStoryHandler,
	importStory *commandhandlers.ImportStoryHandler,
	publishSaga *sagas.PublishStorySaga,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *StoryHandler {
	return &StoryHandler{
		createStory: createStory,
		importStory: importStory,
		publishSaga: publishSaga,
		commandBus:  commandBus,
		queryBus:    queryBus,
		errors:      pkgerrors.NewErrorHandler(logger, false),
		logger:      logger,
	}
}

// CreateStoryRequest represents the request body for creating a story
type CreateStoryRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// CreateStory handles POST /stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	graph, err := h.createStory.Handle(r.Context(), commands.CreateStoryCommand{
		AuthorID:    userCtx.UserID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         graph.ID().String(),
		"title":      graph.Title(),
		"created_at": graph.CreatedAt(),
	})
}

// ImportStoryRequest represents the request body for importing a story
type ImportStoryRequest struct {
	Title         string                    `json:"title" validate:"required,min=1,max=200"`
	FormatVersion int                       `json:"format_version" validate:"min=0"`
	Entries       []commands.RawSourceEntry `json:"entries" validate:"required,min=1,dive"`
}

// ImportStory handles POST /stories/import
func (h *StoryHandler) ImportStory(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ImportStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.importStory.Handle(r.Context(), commands.ImportStoryCommand{
		AuthorID:      userCtx.UserID,
		Title:         req.Title,
		FormatVersion: req.FormatVersion,
		Entries:       req.Entries,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          result.Story.ID().String(),
		"total_pages": result.TotalPages,
		"warnings":    result.Warnings,
		"migrations":  result.Migrations,
	})
}

// ListStories handles GET /stories
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := common.ExtractPaginationParams(r)
	query := &queries.ListStoriesQuery{
		UserID:        userCtx.UserID,
		TitleContains: r.URL.Query().Get("q"),
		Sort:          params.Sort,
		Order:         params.Order,
		Limit:         params.PageSize,
		Offset:        params.CalculateOffset(),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetStory handles GET /stories/{storyID}
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")
	if storyID == "" {
		h.respondError(w, http.StatusBadRequest, "Story ID is required")
		return
	}

	result, err := h.queryBus.Ask(r.Context(), &queries.GetStoryQuery{
		StoryID: storyID,
		UserID:  userCtx.UserID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetPage handles GET /stories/{storyID}/pages/{page}
func (h *StoryHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")
	page, err := strconv.Atoi(pathParam(r, "page"))
	if err != nil || page < 1 {
		h.respondError(w, http.StatusBadRequest, "Page must be a positive integer")
		return
	}

	result, err := h.queryBus.Ask(r.Context(), &queries.GetPageQuery{
		StoryID: storyID,
		UserID:  userCtx.UserID,
		Page:    page,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// AddNodeRequest represents the request body for adding a node
type AddNodeRequest struct {
	NodeKey  string               `json:"node_key" validate:"required,min=1,max=100"`
	Body     string               `json:"body"`
	Format   string               `json:"format" validate:"omitempty,oneof=text markdown html"`
	IsEnding bool                 `json:"is_ending"`
	Choices  []commands.RawChoice `json:"choices" validate:"dive"`
}

// AddNode handles POST /stories/{storyID}/nodes
func (h *StoryHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")

	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	cmd := commands.AddStoryNodeCommand{
		StoryID:  storyID,
		UserID:   userCtx.UserID,
		NodeKey:  req.NodeKey,
		Body:     req.Body,
		Format:   req.Format,
		IsEnding: req.IsEnding,
		Choices:  req.Choices,
	}
	if err := cmd.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.commandBus.Send(r.Context(), &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"story_id": storyID,
		"node_key": req.NodeKey,
	})
}

// UpdatePassageRequest represents the request body for replacing a passage
type UpdatePassageRequest struct {
	Body   string `json:"body"`
	Format string `json:"format" validate:"omitempty,oneof=text markdown html"`
}

// UpdatePassage handles PUT /stories/{storyID}/nodes/{nodeKey}/passage
func (h *StoryHandler) UpdatePassage(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdatePassageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	cmd := commands.UpdatePassageCommand{
		StoryID: pathParam(r, "storyID"),
		UserID:  userCtx.UserID,
		NodeKey: pathParam(r, "nodeKey"),
		Body:    req.Body,
		Format:  req.Format,
	}
	if err := cmd.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.commandBus.Send(r.Context(), &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"story_id": cmd.StoryID,
		"node_key": cmd.NodeKey,
	})
}

// DeleteStory handles DELETE /stories/{storyID}
func (h *StoryHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.DeleteStoryCommand{
		StoryID: pathParam(r, "storyID"),
		UserID:  userCtx.UserID,
	}
	if err := cmd.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.commandBus.Send(r.Context(), &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PublishStory handles POST /stories/{storyID}/publish
func (h *StoryHandler) PublishStory(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID := pathParam(r, "storyID")
	if storyID == "" {
		h.respondError(w, http.StatusBadRequest, "Story ID is required")
		return
	}

	result, err := h.publishSaga.Publish(r.Context(), storyID, userCtx.UserID)
	if err != nil {
		h.logger.Warn("Story publish failed",
			zap.String("storyID", storyID),
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *StoryHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *StoryHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
