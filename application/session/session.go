package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/events"
	"storyloom-backend/domain/versioning"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/extensions"
	"storyloom-backend/pkg/throttle"
)

// Dependencies bundles the collaborators a session needs
type Dependencies struct {
	Stories   ports.StoryRepository
	Comments  ports.CommentRepository
	Generator ports.PassageGenerator
	Publisher ports.EventPublisher
	Guard     *throttle.Guard
	Config    *config.DomainConfig
	Logger    *zap.Logger

	// Hooks is optional; nil means no lifecycle observers
	Hooks *extensions.HookManager
}

// Session is one user's live engagement with one story. All reads and
// writes of session state funnel through the session mutex, so the
// navigator, save coordinator, and comment slice see a single writer
// even when HTTP handlers call in concurrently.
type Session struct {
	id     string
	userID string
	deps   Dependencies

	mu        sync.Mutex
	graph     *aggregates.StoryGraph
	navigator *Navigator
	saver     *SaveCoordinator
	comments  *CommentSlice
	openedAt  time.Time
	lastUsed  time.Time
}

// Position is a read snapshot of where the session is in the story
type Position struct {
	Page       int                  `json:"page"`
	NodeKey    string               `json:"node_key"`
	TotalPages int                  `json:"total_pages"`
	CanGoBack  bool                 `json:"can_go_back"`
	IsEnding   bool                 `json:"is_ending"`
	Body       string               `json:"body"`
	Choices    []PositionChoice     `json:"choices"`
	Comments   []*entities.Comment  `json:"-"`
}

// PositionChoice is one outgoing choice with its resolved page number
type PositionChoice struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Page   int    `json:"page"`
}

// NewSession creates a session that has no story loaded yet
func NewSession(id, userID string, deps Dependencies) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		userID:    userID,
		deps:      deps,
		navigator: NewNavigator(),
		openedAt:  now,
		lastUsed:  now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// UserID returns the user who owns the session
func (s *Session) UserID() string { return s.userID }

// StoryID returns the story the session is engaged with, or empty
// once the session is closed
func (s *Session) StoryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return ""
	}
	return string(s.graph.ID())
}

// LastUsed returns the time of the most recent operation
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Open loads a story and positions the session on page 1. A mapping
// failure leaves the session without a story; nothing is partially
// initialized.
func (s *Session) Open(ctx context.Context, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	graph, err := s.deps.Stories.LoadStory(ctx, aggregates.StoryID(storyID))
	if err != nil {
		return err
	}

	if err := s.navigator.Initialize(graph); err != nil {
		return err
	}

	s.graph = graph
	s.saver = NewSaveCoordinator(
		s.id,
		s.deps.Stories,
		versioning.NewRevisionService(),
		s.deps.Guard,
		s.deps.Publisher,
		s.deps.Config.SaveMinInterval,
		s.deps.Logger,
	)
	s.comments = NewCommentSlice(
		s.id, storyID,
		s.deps.Comments,
		s.deps.Guard,
		s.deps.Publisher,
		s.deps.Config,
		s.deps.Logger,
	)

	if err := s.comments.SwitchPage(ctx, s.navigator.CurrentPage()); err != nil {
		// Comments are a cache; a fetch failure does not block opening
		s.deps.Logger.Warn("initial comment fetch failed",
			zap.String("session_id", s.id),
			zap.Error(err))
	}

	s.deps.Logger.Info("session opened",
		zap.String("session_id", s.id),
		zap.String("story_id", storyID),
		zap.String("user_id", s.userID),
		zap.Int("total_pages", s.navigator.TotalPages()))
	return nil
}

// Close flushes unsaved changes and unloads the story
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.graph != nil && s.saver != nil && s.saver.HasUnsavedChanges() {
		err = s.saver.Flush(ctx, s.graph, s.userID)
	}

	s.navigator.Teardown()
	s.graph = nil
	s.saver = nil
	s.comments = nil

	s.deps.Logger.Info("session closed", zap.String("session_id", s.id))
	return err
}

// GoToPage flips to a page and repoints the comment slice
func (s *Session) GoToPage(ctx context.Context, page int) (*Position, error) {
	return s.navigate(ctx, func() error { return s.navigator.GoToPage(page) })
}

// GoToNode jumps to a node and repoints the comment slice
func (s *Session) GoToNode(ctx context.Context, key valueobjects.NodeKey) (*Position, error) {
	return s.navigate(ctx, func() error { return s.navigator.GoToNode(key) })
}

// FollowChoice follows one of the current node's choices by index
func (s *Session) FollowChoice(ctx context.Context, index int) (*Position, error) {
	return s.navigate(ctx, func() error {
		node, err := s.currentNodeLocked()
		if err != nil {
			return err
		}
		choices := node.Choices()
		if index < 0 || index >= len(choices) {
			return pkgerrors.NewNavigationRejection("choice index out of range")
		}
		return s.navigator.GoToNode(choices[index].Target)
	})
}

// GoBack pops the navigation history
func (s *Session) GoBack(ctx context.Context) (*Position, error) {
	return s.navigate(ctx, func() error { return s.navigator.GoBack() })
}

// Restart returns to the entry node and clears history
func (s *Session) Restart(ctx context.Context) (*Position, error) {
	return s.navigate(ctx, func() error { return s.navigator.Restart() })
}

// CurrentPosition returns a snapshot without navigating
func (s *Session) CurrentPosition() (*Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.positionLocked()
}

// UpdatePassage replaces the body of a node and marks the session dirty
func (s *Session) UpdatePassage(ctx context.Context, key valueobjects.NodeKey, body string, format valueobjects.PassageFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireOpenLocked(); err != nil {
		return err
	}

	node, err := s.graph.GetNode(key)
	if err != nil {
		return err
	}

	passage, err := valueobjects.NewPassageWithConfig(body, format, s.deps.Config)
	if err != nil {
		return err
	}
	if err := node.UpdatePassage(passage); err != nil {
		return err
	}

	s.saver.MarkDirty()
	return nil
}

// AddNode appends a node to the graph. The active mapping is not
// recomputed; existing page numbers stay stable until the story is
// reopened.
func (s *Session) AddNode(ctx context.Context, node *entities.StoryNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireOpenLocked(); err != nil {
		return err
	}
	if err := s.graph.AddNode(node); err != nil {
		return err
	}

	s.saver.MarkDirty()
	return nil
}

// Save persists the story through the throttled save coordinator
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireOpenLocked(); err != nil {
		return SaveFailed, err
	}
	result, err := s.saver.Save(ctx, s.graph, s.userID)
	if err == nil && result == SaveCompleted && s.deps.Hooks != nil {
		s.deps.Hooks.ExecuteAsync(ctx, extensions.HookStorySaved, extensions.HookData{
			SessionID: s.id,
			StoryID:   s.graph.ID().String(),
			UserID:    s.userID,
		})
	}
	return result, err
}

// HasUnsavedChanges reports whether a save is pending
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph != nil && s.saver.HasUnsavedChanges()
}

// Comments returns the comment slice for the current page
func (s *Session) Comments() *CommentSlice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments
}

// GeneratePassage asks the generation collaborator for content. Calls
// are throttled per session like saves and comments.
func (s *Session) GeneratePassage(ctx context.Context, req ports.GenerationRequest) (string, error) {
	s.mu.Lock()
	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.touch()
	storyID := s.graph.ID().String()
	s.mu.Unlock()

	var (
		result string
		opErr  error
	)
	outcome := s.deps.Guard.Do(ctx, "generate:"+s.id, throttle.Options{
		MinInterval: s.deps.Config.GenerateMinInterval,
	}, func(ctx context.Context) error {
		result, opErr = s.deps.Generator.Generate(ctx, req)
		return opErr
	})

	switch outcome {
	case throttle.OutcomeSkipped:
		return "", pkgerrors.NewRateLimitError(1, s.deps.Config.GenerateMinInterval.String())
	case throttle.OutcomeFailed:
		return "", opErr
	}

	if s.deps.Publisher != nil {
		event := events.NewPassageGenerated(storyID, string(req.ContentType), req.Model, time.Now())
		if err := s.deps.Publisher.Publish(ctx, event); err != nil {
			s.deps.Logger.Warn("failed to publish generation event",
				zap.String("story_id", storyID),
				zap.Error(err))
		}
	}
	return result, nil
}

func (s *Session) navigate(ctx context.Context, move func() error) (*Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireOpenLocked(); err != nil {
		return nil, err
	}
	if err := move(); err != nil {
		return nil, err
	}

	if err := s.comments.SwitchPage(ctx, s.navigator.CurrentPage()); err != nil {
		s.deps.Logger.Warn("comment fetch failed after navigation",
			zap.String("session_id", s.id),
			zap.Int("page", s.navigator.CurrentPage()),
			zap.Error(err))
	}

	return s.positionLocked()
}

func (s *Session) positionLocked() (*Position, error) {
	if err := s.requireOpenLocked(); err != nil {
		return nil, err
	}

	node, err := s.currentNodeLocked()
	if err != nil {
		return nil, err
	}

	pos := &Position{
		Page:       s.navigator.CurrentPage(),
		NodeKey:    node.Key().String(),
		TotalPages: s.navigator.TotalPages(),
		CanGoBack:  s.navigator.CanGoBack(),
		IsEnding:   node.IsEnding(),
		Body:       node.Passage().Body(),
	}
	if s.comments != nil {
		pos.Comments = s.comments.Comments()
	}

	for _, choice := range node.Choices() {
		page, ok := s.navigator.Mapping().PageFor(choice.Target)
		if !ok {
			// Dangling targets are allowed in the graph but produce no
			// navigable choice
			continue
		}
		pos.Choices = append(pos.Choices, PositionChoice{
			Label:  choice.Label,
			Target: choice.Target.String(),
			Page:   page,
		})
	}
	return pos, nil
}

func (s *Session) currentNodeLocked() (*entities.StoryNode, error) {
	return s.graph.GetNode(s.navigator.CurrentNode())
}

func (s *Session) requireOpenLocked() error {
	if s.graph == nil || s.navigator.State() != StateReady {
		return pkgerrors.NewNavigationRejection("no story loaded")
	}
	return nil
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}
