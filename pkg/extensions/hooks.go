// Package extensions provides lifecycle hook points that let outer
// layers observe session and story activity without the application
// layer depending on them.
package extensions

import (
	"context"
	"fmt"
	"sync"
)

// HookPoint represents a point in the application where hooks can be registered
type HookPoint string

const (
	// Session lifecycle
	HookSessionOpened  HookPoint = "session_opened"
	HookSessionClosed  HookPoint = "session_closed"
	HookSessionEvicted HookPoint = "session_evicted"

	// Story lifecycle
	HookStorySaved HookPoint = "story_saved"
)

// Hook represents a function that can be executed at a hook point
type Hook func(ctx context.Context, data HookData) error

// HookData carries the subject of a hook invocation
type HookData struct {
	SessionID string
	StoryID   string
	UserID    string
	Metadata  map[string]string
}

// HookManager manages hooks for extension points
type HookManager struct {
	hooks map[HookPoint][]Hook
	mu    sync.RWMutex
}

// NewHookManager creates a new hook manager
func NewHookManager() *HookManager {
	return &HookManager{
		hooks: make(map[HookPoint][]Hook),
	}
}

// Register registers a hook for a specific hook point
func (m *HookManager) Register(point HookPoint, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[point] = append(m.hooks[point], hook)
}

// Execute executes all hooks for a specific hook point. The first
// failing hook stops the chain.
func (m *HookManager) Execute(ctx context.Context, point HookPoint, data HookData) error {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for i, hook := range hooks {
		if err := hook(ctx, data); err != nil {
			return fmt.Errorf("hook %d at %s failed: %w", i, point, err)
		}
	}

	return nil
}

// ExecuteAsync executes hooks asynchronously, ignoring errors
func (m *HookManager) ExecuteAsync(ctx context.Context, point HookPoint, data HookData) {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for _, hook := range hooks {
		go func(h Hook) {
			_ = h(ctx, data)
		}(hook)
	}
}

// Clear removes all hooks for a specific hook point
func (m *HookManager) Clear(point HookPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hooks, point)
}

// ClearAll removes all registered hooks
func (m *HookManager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = make(map[HookPoint][]Hook)
}
