package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupMissingIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRegistryTryResultWhileRunningIsTaskRunning(t *testing.T) {
	r := NewRegistry()
	s := NewSpawner()
	block := make(chan struct{})
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	}})
	r.Add(tk)
	RunAsync(context.Background(), tk)

	_, err := r.TryResult(tk.ID)
	assert.ErrorIs(t, err, ErrTaskRunning)
	close(block)
	Await(context.Background(), tk)
}

func TestRegistryTryResultOnCompletion(t *testing.T) {
	r := NewRegistry()
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return "ok", nil }})
	r.Add(tk)
	Run(context.Background(), tk)

	result, err := r.TryResult(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Value)
}

func TestRegistryTryResultOnFailureWrapsInnerError(t *testing.T) {
	r := NewRegistry()
	s := NewSpawner()
	inner := errors.New("boom")
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, inner }})
	r.Add(tk)
	Run(context.Background(), tk)

	_, err := r.TryResult(tk.ID)
	var failedErr *TaskFailedError
	require.ErrorAs(t, err, &failedErr)
	assert.Equal(t, tk.ID, failedErr.TaskID)
	assert.ErrorIs(t, err, inner)
}

func TestRegistryTryResultOnCancellation(t *testing.T) {
	r := NewRegistry()
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	r.Add(tk)
	tk.Cancel()
	Run(context.Background(), tk)

	_, err := r.TryResult(tk.ID)
	assert.ErrorIs(t, err, ErrTaskCancelled)
}

func TestRegistryLookupReturnsAddedTask(t *testing.T) {
	r := NewRegistry()
	s := NewSpawner()
	tk := s.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	r.Add(tk)

	found, err := r.Lookup(tk.ID)
	require.NoError(t, err)
	assert.Same(t, tk, found)
}
