package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RunsOperation(t *testing.T) {
	g := NewGuard()

	ran := false
	outcome := g.Do(context.Background(), "save", Options{}, func(ctx context.Context) error {
		ran = true
		return nil
	})

	assert.Equal(t, OutcomeRan, outcome)
	assert.True(t, ran)
}

func TestGuard_SecondCallWithinIntervalIsSkipped(t *testing.T) {
	g := NewGuard()

	executions := 0
	op := func(ctx context.Context) error {
		executions++
		return nil
	}
	opts := Options{MinInterval: 500 * time.Millisecond}

	first := g.Do(context.Background(), "save", opts, op)
	second := g.Do(context.Background(), "save", opts, op)

	assert.Equal(t, OutcomeRan, first)
	assert.Equal(t, OutcomeSkipped, second)
	assert.Equal(t, 1, executions, "exactly one execution of the underlying operation")
}

func TestGuard_SkipExtendsInterval(t *testing.T) {
	g := NewGuard()

	current := time.Now()
	g.now = func() time.Time { return current }

	opts := Options{MinInterval: time.Second}
	op := func(ctx context.Context) error { return nil }

	require.Equal(t, OutcomeRan, g.Do(context.Background(), "save", opts, op))

	// A skip counts as an invocation, so the interval restarts from it
	current = current.Add(900 * time.Millisecond)
	require.Equal(t, OutcomeSkipped, g.Do(context.Background(), "save", opts, op))

	current = current.Add(900 * time.Millisecond)
	assert.Equal(t, OutcomeSkipped, g.Do(context.Background(), "save", opts, op))

	current = current.Add(time.Second)
	assert.Equal(t, OutcomeRan, g.Do(context.Background(), "save", opts, op))
}

func TestGuard_InFlightInvocationIsSkipped(t *testing.T) {
	g := NewGuard()

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.Do(context.Background(), "save", Options{}, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.True(t, g.InFlight("save"))

	outcome := g.Do(context.Background(), "save", Options{}, func(ctx context.Context) error {
		t.Fatal("second operation must not run while one is in flight")
		return nil
	})
	assert.Equal(t, OutcomeSkipped, outcome)

	close(release)
	wg.Wait()
	assert.False(t, g.InFlight("save"))
}

func TestGuard_IndependentKeysDoNotInterfere(t *testing.T) {
	g := NewGuard()

	opts := Options{MinInterval: time.Minute}
	op := func(ctx context.Context) error { return nil }

	assert.Equal(t, OutcomeRan, g.Do(context.Background(), "save", opts, op))
	assert.Equal(t, OutcomeRan, g.Do(context.Background(), "comments", opts, op))
}

func TestGuard_ErrorIsReportedAndSwallowed(t *testing.T) {
	g := NewGuard()

	opErr := errors.New("persistence unavailable")
	var reported error
	var successCalled bool

	outcome := g.Do(context.Background(), "save", Options{
		OnSuccess: func() { successCalled = true },
		OnFailure: func(err error) { reported = err },
	}, func(ctx context.Context) error {
		return opErr
	})

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, opErr, reported)
	assert.False(t, successCalled)

	// The in-flight flag must be released after a failure
	assert.False(t, g.InFlight("save"))
}

func TestGuard_CallbacksObserveLifecycle(t *testing.T) {
	g := NewGuard()

	var order []string
	outcome := g.Do(context.Background(), "save", Options{
		OnStart:   func() { order = append(order, "start") },
		OnSuccess: func() { order = append(order, "success") },
	}, func(ctx context.Context) error {
		order = append(order, "op")
		return nil
	})

	assert.Equal(t, OutcomeRan, outcome)
	assert.Equal(t, []string{"start", "op", "success"}, order)
}

func TestGuard_ResetForgetsInterval(t *testing.T) {
	g := NewGuard()

	opts := Options{MinInterval: time.Hour}
	op := func(ctx context.Context) error { return nil }

	require.Equal(t, OutcomeRan, g.Do(context.Background(), "save", opts, op))
	require.Equal(t, OutcomeSkipped, g.Do(context.Background(), "save", opts, op))

	g.Reset("save")
	assert.Equal(t, OutcomeRan, g.Do(context.Background(), "save", opts, op))
}

func TestGuard_WrapProducesReusableTrigger(t *testing.T) {
	g := NewGuard()

	executions := 0
	trigger := g.Wrap("generate", Options{MinInterval: time.Hour}, func(ctx context.Context) error {
		executions++
		return nil
	})

	assert.Equal(t, OutcomeRan, trigger(context.Background()))
	assert.Equal(t, OutcomeSkipped, trigger(context.Background()))
	assert.Equal(t, 1, executions)
}
