package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnerAssignsMonotonicIDs(t *testing.T) {
	s := NewSpawner()
	a := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	b := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	assert.Equal(t, a.ID+1, b.ID)
}

func TestRunTransitionsPendingToCompleted(t *testing.T) {
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return 42, nil }})
	assert.Equal(t, StatePending, tk.State())

	result := Run(context.Background(), tk)
	assert.Equal(t, StateCompleted, tk.State())
	assert.Equal(t, 42, result.Value)
}

func TestRunTransitionsToFailedOnError(t *testing.T) {
	s := NewSpawner()
	wantErr := errors.New("boom")
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, wantErr }})
	result := Run(context.Background(), tk)
	assert.Equal(t, StateFailed, tk.State())
	assert.ErrorIs(t, result.Err, wantErr)
}

func TestPanicIsCapturedAsFailure(t *testing.T) {
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) {
		panic("kaboom")
	}})
	Run(context.Background(), tk)
	assert.Equal(t, StateFailed, tk.State())
	assert.ErrorContains(t, tk.Result().Err, "kaboom")
}

func TestCancelBeforeRunYieldsCancelledState(t *testing.T) {
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return 1, nil }})
	tk.Cancel()
	Run(context.Background(), tk)
	assert.Equal(t, StateCancelled, tk.State())
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return 1, nil }})
	Run(context.Background(), tk)
	tk.Cancel()
	assert.Equal(t, StateCompleted, tk.State())
}

func TestAwaitBlocksUntilAsyncCompletion(t *testing.T) {
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}})
	RunAsync(context.Background(), tk)

	state, result, err := Await(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, "done", result.Value)
}

func TestAwaitAllIsConjunction(t *testing.T) {
	s := NewSpawner()
	var tasks []*Task
	for i := 0; i < 3; i++ {
		tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
		RunAsync(context.Background(), tk)
		tasks = append(tasks, tk)
	}

	states, err := AwaitAll(context.Background(), tasks)
	require.NoError(t, err)
	for _, st := range states {
		assert.Equal(t, StateCompleted, st)
	}
}

func TestPriorityStringing(t *testing.T) {
	assert.Equal(t, "normal", PriorityNormal.String())
	assert.Equal(t, PriorityNormal, Priority(0))
}
