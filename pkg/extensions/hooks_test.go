package extensions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsHooksInRegistrationOrder(t *testing.T) {
	manager := NewHookManager()

	var order []string
	manager.Register(HookSessionOpened, func(ctx context.Context, data HookData) error {
		order = append(order, "first")
		return nil
	})
	manager.Register(HookSessionOpened, func(ctx context.Context, data HookData) error {
		order = append(order, "second")
		return nil
	})

	err := manager.Execute(context.Background(), HookSessionOpened, HookData{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	manager := NewHookManager()

	manager.Register(HookStorySaved, func(ctx context.Context, data HookData) error {
		return errors.New("boom")
	})
	reached := false
	manager.Register(HookStorySaved, func(ctx context.Context, data HookData) error {
		reached = true
		return nil
	})

	err := manager.Execute(context.Background(), HookStorySaved, HookData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "story_saved")
	assert.False(t, reached)
}

func TestExecuteAsyncRunsAllHooks(t *testing.T) {
	manager := NewHookManager()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	seen := make([]string, 0, 2)

	record := func(name string) Hook {
		return func(ctx context.Context, data HookData) error {
			mu.Lock()
			seen = append(seen, name+":"+data.SessionID)
			mu.Unlock()
			wg.Done()
			return nil
		}
	}
	manager.Register(HookSessionClosed, record("a"))
	manager.Register(HookSessionClosed, record("b"))

	manager.ExecuteAsync(context.Background(), HookSessionClosed, HookData{SessionID: "s9"})
	wg.Wait()

	assert.ElementsMatch(t, []string{"a:s9", "b:s9"}, seen)
}

func TestClearRemovesOnlyThatPoint(t *testing.T) {
	manager := NewHookManager()

	calls := 0
	hook := func(ctx context.Context, data HookData) error {
		calls++
		return nil
	}
	manager.Register(HookSessionOpened, hook)
	manager.Register(HookSessionClosed, hook)

	manager.Clear(HookSessionOpened)

	require.NoError(t, manager.Execute(context.Background(), HookSessionOpened, HookData{}))
	require.NoError(t, manager.Execute(context.Background(), HookSessionClosed, HookData{}))
	assert.Equal(t, 1, calls)
}
