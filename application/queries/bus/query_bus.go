// Package bus routes read-side queries to their handlers. The write
// side has its own command bus; this one adds the read-specific
// concerns of result caching and per-query metrics.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Query is a read request that can check its own arguments
type Query interface {
	Validate() error
}

// QueryHandler executes one query type and returns its result
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc adapts a plain function to QueryHandler
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryBus maps query types to handlers. Registration happens once at
// startup; Ask is safe for concurrent use afterwards.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]QueryHandler
}

func NewQueryBus() *QueryBus {
	return &QueryBus{handlers: make(map[reflect.Type]QueryHandler)}
}

// Register binds a handler to the concrete type of queryType. A second
// registration for the same type is a wiring mistake and fails.
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, dup := b.handlers[t]; dup {
		return fmt.Errorf("handler already registered for query type %s", t)
	}
	b.handlers[t] = handler
	return nil
}

// Ask validates the query, finds its handler and runs it
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("query validation failed: %w", err)
	}

	b.mu.RLock()
	handler, ok := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for query type %T", query)
	}

	result, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query handler failed: %w", err)
	}
	return result, nil
}

// Cache is the store the caching middleware reads through
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachingMiddleware serves repeated queries from cache. Story content
// changes rarely relative to how often readers fetch it, so even a
// short TTL absorbs most of the read load.
type CachingMiddleware struct {
	cache Cache
	ttl   time.Duration
}

func NewCachingMiddleware(cache Cache, ttl time.Duration) *CachingMiddleware {
	return &CachingMiddleware{cache: cache, ttl: ttl}
}

// Wrap returns a handler that consults the cache before next and
// stores successful results after it
func (m *CachingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		key := cacheKey(query)
		if cached, hit := m.cache.Get(ctx, key); hit {
			return cached, nil
		}

		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}

		m.cache.Set(ctx, key, result, m.ttl)
		return result, nil
	})
}

// cacheKey derives a key from the query's type and field values.
// Queries are small flat structs, so the printed form is stable enough
// to key on.
func cacheKey(query Query) string {
	return fmt.Sprintf("%T:%+v", query, query)
}

// Metrics is the recorder the metrics middleware reports to
type Metrics interface {
	StartTimer(metric, label string) Timer
	Increment(metric, label string)
}

// Timer measures one handler execution
type Timer interface {
	Stop()
}

// MetricsMiddleware records duration and outcome counts per query type
type MetricsMiddleware struct {
	metrics Metrics
}

func NewMetricsMiddleware(metrics Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: metrics}
}

func (m *MetricsMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		t := reflect.TypeOf(query)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		label := t.Name()
		timer := m.metrics.StartTimer("query_duration", label)
		defer timer.Stop()

		m.metrics.Increment("query_count", label)

		result, err := next.Handle(ctx, query)
		if err != nil {
			m.metrics.Increment("query_errors", label)
			return nil, err
		}
		m.metrics.Increment("query_success", label)
		return result, nil
	})
}
