// Package task implements the task model: immutable task
// configuration, a monotonic id spawner, and the pending -> running ->
// {completed, failed, cancelled} state machine driven by the executing
// worker, grounded on the teacher's GoroutineManager
// (runtime/concurrency.go) and the Rust runtime's task.rs priority
// scheme.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Priority orders tasks for scheduling preference. Normal is the
// zero-value default, matching Go convention; Low sorts below it.
type Priority int8

const (
	PriorityLow Priority = iota - 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// State is the task's current lifecycle stage.
type State byte

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config is a task's immutable configuration, fixed at spawn time.
type Config struct {
	Priority      Priority
	Name          string
	StackSizeHint uint32
	ParentID      *uint64
	Body          func(ctx context.Context) (interface{}, error)
}

// Result holds a terminal task's outcome: exactly one of Value or Err
// is meaningful, selected by State.
type Result struct {
	Value interface{}
	Err   error
}

// Task is one spawned unit of work plus its runtime bookkeeping.
//
// CorrelationID is a random UUID assigned at creation, independent of
// the monotonic ID: the ID is cheap and ordering-meaningful for internal
// bookkeeping (deque slots, round-robin targets), while CorrelationID
// is a non-sequential identity for callers to use in external messages.
// Nothing in this package reads it, and InterruptSlot does not carry it.
type Task struct {
	ID            uint64
	CorrelationID uuid.UUID
	Config        Config

	// Interrupt is the per-task mailbox a hosting tier richer than the
	// embedded interpreter polls at opcode boundaries (timeouts,
	// breakpoints, stack-overflow, memory violations). The embedded
	// tier never reads it.
	Interrupt *InterruptSlot

	mu         sync.Mutex
	state      State
	result     Result
	cancelFlag atomic.Bool
	done       chan struct{}
}

func newTask(id uint64, cfg Config) *Task {
	return &Task{ID: id, CorrelationID: uuid.New(), Config: cfg, Interrupt: NewInterruptSlot(), state: StatePending, done: make(chan struct{})}
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// CancelRequested reports whether Cancel has been called; the running
// body must poll this at a cooperative checkpoint for cancellation to
// take effect. A no-op once the task is already terminal.
func (t *Task) CancelRequested() bool {
	return t.cancelFlag.Load()
}

// Cancel is best-effort: it only has an observable effect if the task
// is still pending or running when a checkpoint notices the flag.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.cancelFlag.Store(true)
}

// run executes the task body, transitioning pending -> running and
// then to the terminal state the body's outcome implies. A panic
// escaping the body is captured and reported as a failure, matching
// the teacher's goroutine-panic recovery in ExecuteGoroutine.
func (t *Task) run(ctx context.Context) {
	t.mu.Lock()
	t.state = StateRunning
	t.mu.Unlock()

	var result Result
	var finalState State

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = Result{Err: fmt.Errorf("task %d panicked: %v", t.ID, r)}
				finalState = StateFailed
			}
		}()

		if t.cancelFlag.Load() {
			finalState = StateCancelled
			return
		}

		value, err := t.Config.Body(ctx)
		if t.cancelFlag.Load() {
			finalState = StateCancelled
			return
		}
		if err != nil {
			result = Result{Err: err}
			finalState = StateFailed
			return
		}
		result = Result{Value: value}
		finalState = StateCompleted
	}()

	t.mu.Lock()
	t.state = finalState
	t.result = result
	t.mu.Unlock()
	close(t.done)
}

// Spawner assigns monotonically increasing ids to newly created tasks.
type Spawner struct {
	nextID atomic.Uint64
}

func NewSpawner() *Spawner {
	return &Spawner{}
}

// New creates a task in pending state with the next id; it does not
// schedule it for execution — callers hand it to a scheduler or run it
// directly via Run.
func (s *Spawner) New(cfg Config) *Task {
	id := s.nextID.Add(1)
	return newTask(id, cfg)
}

// Run executes t synchronously on the calling goroutine and returns
// once it reaches a terminal state.
func Run(ctx context.Context, t *Task) Result {
	t.run(ctx)
	return t.Result()
}

// RunAsync executes t on a new goroutine.
func RunAsync(ctx context.Context, t *Task) {
	go t.run(ctx)
}

// Await blocks until t reaches a terminal state, respecting ctx
// cancellation, then reports that state's result.
func Await(ctx context.Context, t *Task) (State, Result, error) {
	select {
	case <-t.done:
		return t.State(), t.Result(), nil
	case <-ctx.Done():
		return t.State(), Result{}, ctx.Err()
	}
}

// AwaitAll is the conjunction of Await over every task in ts.
func AwaitAll(ctx context.Context, ts []*Task) ([]State, error) {
	states := make([]State, len(ts))
	for i, t := range ts {
		state, _, err := Await(ctx, t)
		if err != nil {
			return states, err
		}
		states[i] = state
	}
	return states, nil
}
