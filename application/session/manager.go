package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/extensions"
)

// Manager owns the set of live sessions. Sessions are created per
// (user, story) engagement and evicted after sitting idle past the
// configured timeout; eviction flushes unsaved changes first.
type Manager struct {
	deps   Dependencies
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewManager creates a session manager and starts its eviction loop
func NewManager(deps Dependencies) *Manager {
	m := &Manager{
		deps:        deps,
		logger:      deps.Logger,
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create opens a new session for a user on a story
func (m *Manager) Create(ctx context.Context, userID, storyID string) (*Session, error) {
	sess := NewSession(uuid.New().String(), userID, m.deps)
	if err := sess.Open(ctx, storyID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	m.fireHook(ctx, extensions.HookSessionOpened, sess, storyID)
	return sess, nil
}

// Get returns a live session owned by the given user
func (m *Manager) Get(sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, pkgerrors.NewNotFoundError("session " + sessionID)
	}
	if sess.UserID() != userID {
		// Do not leak whether another user's session exists
		return nil, pkgerrors.NewNotFoundError("session " + sessionID)
	}
	return sess, nil
}

// Close ends a session, flushing unsaved changes
func (m *Manager) Close(ctx context.Context, sessionID, userID string) error {
	sess, err := m.Get(sessionID, userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	storyID := sess.StoryID()
	closeErr := sess.Close(ctx)
	m.fireHook(ctx, extensions.HookSessionClosed, sess, storyID)
	return closeErr
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the eviction loop and closes every session
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stopCleanup) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Close(ctx); err != nil {
			m.logger.Warn("session close during shutdown failed",
				zap.String("session_id", sess.ID()),
				zap.Error(err))
		}
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	timeout := m.deps.Config.SessionTimeout
	if timeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-timeout)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.LastUsed().Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		storyID := sess.StoryID()
		if err := sess.Close(ctx); err != nil {
			m.logger.Warn("idle session flush failed",
				zap.String("session_id", sess.ID()),
				zap.Error(err))
		}
		m.fireHook(ctx, extensions.HookSessionEvicted, sess, storyID)
		cancel()
		m.logger.Info("idle session evicted", zap.String("session_id", sess.ID()))
	}
}

func (m *Manager) fireHook(ctx context.Context, point extensions.HookPoint, sess *Session, storyID string) {
	if m.deps.Hooks == nil {
		return
	}
	m.deps.Hooks.ExecuteAsync(ctx, point, extensions.HookData{
		SessionID: sess.ID(),
		StoryID:   storyID,
		UserID:    sess.UserID(),
	})
}
