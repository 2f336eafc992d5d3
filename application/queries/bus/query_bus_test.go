package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Author  string
	invalid bool
}

func (q *listQuery) Validate() error {
	if q.invalid {
		return errors.New("author is required")
	}
	return nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]interface{}
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]interface{})}
}

func (c *mapCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	c.sets++
	return nil
}

func TestAskDispatchesToRegisteredHandler(t *testing.T) {
	b := NewQueryBus()
	err := b.Register(&listQuery{}, QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		return "stories by " + query.(*listQuery).Author, nil
	}))
	require.NoError(t, err)

	result, err := b.Ask(context.Background(), &listQuery{Author: "lena"})

	require.NoError(t, err)
	assert.Equal(t, "stories by lena", result)
}

func TestRegisterRejectsDuplicateType(t *testing.T) {
	b := NewQueryBus()
	handler := QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		return nil, nil
	})

	require.NoError(t, b.Register(&listQuery{}, handler))
	assert.Error(t, b.Register(&listQuery{}, handler))
}

func TestAskFailsValidationBeforeDispatch(t *testing.T) {
	b := NewQueryBus()
	called := false
	require.NoError(t, b.Register(&listQuery{}, QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		called = true
		return nil, nil
	})))

	_, err := b.Ask(context.Background(), &listQuery{invalid: true})

	assert.Error(t, err)
	assert.False(t, called)
}

func TestAskFailsForUnknownQueryType(t *testing.T) {
	b := NewQueryBus()

	_, err := b.Ask(context.Background(), &listQuery{})

	assert.ErrorContains(t, err, "no handler registered")
}

func TestCachingMiddlewareServesRepeatsFromCache(t *testing.T) {
	cache := newMapCache()
	calls := 0
	handler := NewCachingMiddleware(cache, 30*time.Second).Wrap(QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		calls++
		return "page one", nil
	}))

	for i := 0; i < 3; i++ {
		result, err := handler.Handle(context.Background(), &listQuery{Author: "lena"})
		require.NoError(t, err)
		assert.Equal(t, "page one", result)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.sets)
}

func TestCachingMiddlewareSkipsFailedResults(t *testing.T) {
	cache := newMapCache()
	handler := NewCachingMiddleware(cache, 30*time.Second).Wrap(QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		return nil, errors.New("store unavailable")
	}))

	_, err := handler.Handle(context.Background(), &listQuery{})

	assert.Error(t, err)
	assert.Equal(t, 0, cache.sets)
}
