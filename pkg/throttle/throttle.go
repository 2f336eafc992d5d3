package throttle

import (
	"context"
	"sync"
	"time"
)

// Outcome describes how a guarded invocation ended. A skip is a
// deliberate no-op, distinct from a failure: callers must branch on the
// outcome value and never expect an error to escape the guard.
type Outcome string

const (
	// OutcomeRan means the operation executed and returned nil
	OutcomeRan Outcome = "ran"

	// OutcomeFailed means the operation executed and returned an error;
	// the error was delivered to OnFailure and swallowed
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means the guard rejected the invocation, either
	// because one was already in flight for the key or because the
	// minimum interval had not elapsed
	OutcomeSkipped Outcome = "skipped"
)

// Options configures a guarded invocation. The callbacks are purely
// observational and never influence the skip/run decision.
type Options struct {
	// MinInterval is the minimum time since the last completed or
	// skipped invocation for the same key. Zero disables the interval
	// check, leaving only the in-flight guard.
	MinInterval time.Duration

	OnStart   func()
	OnSuccess func()
	OnFailure func(error)
}

type entry struct {
	inFlight bool
	// last is the time the previous invocation for this key completed
	// or was skipped
	last time.Time
}

// Guard serializes and deduplicates named asynchronous actions. For a
// given key it allows at most one in-flight operation; a second trigger
// while one is running is skipped, not queued. It exists to collapse
// rapid repeated UI triggers into a single execution, not to guarantee
// that every call eventually runs.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewGuard creates an empty guard. Entries are created lazily per key
// and live for the lifetime of the guard; they are never persisted.
func NewGuard() *Guard {
	return &Guard{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Do runs op under the named key if the guard admits it.
//
// The in-flight flag is acquired before op starts and released on every
// exit path, including panics. Errors from op are reported through
// OnFailure and swallowed; Do itself never returns an error.
func (g *Guard) Do(ctx context.Context, key string, opts Options, op func(context.Context) error) Outcome {
	g.mu.Lock()
	e, exists := g.entries[key]
	if !exists {
		e = &entry{}
		g.entries[key] = e
	}

	now := g.now()
	if e.inFlight || (opts.MinInterval > 0 && !e.last.IsZero() && now.Sub(e.last) < opts.MinInterval) {
		// A skip counts as an invocation for interval purposes
		e.last = now
		g.mu.Unlock()
		return OutcomeSkipped
	}

	e.inFlight = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		e.inFlight = false
		e.last = g.now()
		g.mu.Unlock()
	}()

	if opts.OnStart != nil {
		opts.OnStart()
	}

	if err := op(ctx); err != nil {
		if opts.OnFailure != nil {
			opts.OnFailure(err)
		}
		return OutcomeFailed
	}

	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	return OutcomeRan
}

// Wrap binds a key, options and operation into a reusable trigger
func (g *Guard) Wrap(key string, opts Options, op func(context.Context) error) func(context.Context) Outcome {
	return func(ctx context.Context) Outcome {
		return g.Do(ctx, key, opts, op)
	}
}

// InFlight reports whether an operation is currently running for key
func (g *Guard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, exists := g.entries[key]
	return exists && e.inFlight
}

// Reset forgets all state for a key
func (g *Guard) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.entries, key)
}
