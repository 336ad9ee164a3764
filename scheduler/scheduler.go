// Package scheduler implements the flow scheduler: a worker pool
// coupling task execution with a shared DAG's ready queue, work
// stealing, and idle backoff, grounded on the teacher's
// GoroutineManager lifecycle plus the pack's WorkStealingExecutor
// run loop and the SWARM DAG engine's dependent-completion bookkeeping.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yaoxiang-lang/yaoxiang/dag"
	"github.com/yaoxiang-lang/yaoxiang/stealer"
	"github.com/yaoxiang-lang/yaoxiang/task"
)

// NodeExecutor runs one DAG node to completion. It receives only the
// node id; the scheduler calls it after all of the node's dependencies
// have completed, and any result storage is the caller's own.
type NodeExecutor func(ctx context.Context, id dag.NodeID) error

// Config configures a FlowScheduler.
type Config struct {
	NumWorkers    int
	StealEnabled  bool
	StealStrategy stealer.Strategy
	StealBatch    int
	StealAttempts int
	IdleTimeout   time.Duration

	// MaxInFlightNodes bounds concurrent DAG node execution independent
	// of NumWorkers (0 means unbounded — a worker always executes a
	// ready node it pops).
	MaxInFlightNodes int

	// MaxDequeSize bounds each worker's local deque (0 means
	// unbounded). Per spec §5, spawning into a full deque reports
	// ErrSchedulerFull to the caller rather than blocking, so Spawn
	// stays non-suspending.
	MaxDequeSize int

	Metrics *Metrics
}

func defaultConfig() Config {
	return Config{
		NumWorkers:    runtime.NumCPU(),
		StealEnabled:  true,
		StealStrategy: stealer.StrategyBack,
		StealBatch:    4,
		StealAttempts: 8,
		IdleTimeout:   time.Millisecond,
	}
}

// ErrSchedulerFull is the `scheduler-error` kind spec §7 names for
// backpressure: the target worker's deque is at MaxDequeSize.
var ErrSchedulerFull = fmt.Errorf("scheduler: worker deque full")

// ErrInvalidOperation is spec §7's runtime-level `invalid-operation`
// kind: an operation requested against state that makes it meaningless,
// such as naming a worker index outside [0, NumWorkers).
var ErrInvalidOperation = fmt.Errorf("scheduler: invalid operation")

// ErrNotRunning is returned by Spawn/SpawnOn/AddNodeReady once a
// previously Start-ed scheduler has been Stop-ped: there are no
// workers left to drain whatever would be queued.
var ErrNotRunning = fmt.Errorf("scheduler: not running")

// FlowScheduler is the component coupling a task.Task worker pool to a
// shared dag.Graph: DAG nodes become ready and are pushed into a
// shared queue as their dependencies complete; idle workers fall back
// to work stealing before sleeping.
type FlowScheduler struct {
	cfg   Config
	pool  *stealer.Pool
	graph *dag.Graph
	exec  NodeExecutor

	readyMu sync.Mutex
	ready   []dag.NodeID
	wake    chan struct{}

	completedMu sync.RWMutex
	completed   map[dag.NodeID]bool

	spawnCounter uint64
	spawnMu      sync.Mutex

	running     bool
	everStarted bool
	runMu       sync.Mutex
	wg          sync.WaitGroup
	cancel      context.CancelFunc

	nodeSem *semaphore.Weighted
	metrics *Metrics
}

// New creates a scheduler over graph with cfg.NumWorkers workers backed
// by a shared stealer.Pool. If cfg.NumWorkers is not positive, the whole
// cfg is replaced by the defaults, whose worker count is runtime.NumCPU().
func New(graph *dag.Graph, exec NodeExecutor, cfg Config) *FlowScheduler {
	if cfg.NumWorkers <= 0 {
		cfg = defaultConfig()
	}
	s := &FlowScheduler{
		cfg:       cfg,
		pool:      stealer.NewBoundedPool(cfg.NumWorkers, cfg.StealStrategy, cfg.StealAttempts, cfg.MaxDequeSize),
		graph:     graph,
		exec:      exec,
		wake:      make(chan struct{}, 1),
		completed: make(map[dag.NodeID]bool),
		metrics:   cfg.Metrics,
	}
	if cfg.MaxInFlightNodes > 0 {
		s.nodeSem = semaphore.NewWeighted(int64(cfg.MaxInFlightNodes))
	}
	return s
}

// AddNodeReady is called once a node with no unresolved dependencies
// should enter the ready queue — roots are pushed immediately when
// added to the DAG, ahead of Start. It returns ErrNotRunning once the
// scheduler has been Stop-ped: there are no more workers draining the
// ready queue, so accepting the node would only grow it unboundedly.
func (s *FlowScheduler) AddNodeReady(id dag.NodeID) error {
	if s.stoppedAfterStart() {
		return ErrNotRunning
	}
	s.readyMu.Lock()
	s.ready = append(s.ready, id)
	depth := len(s.ready)
	s.readyMu.Unlock()
	if s.metrics != nil {
		s.metrics.readyDepth.Set(float64(depth))
	}
	s.signal()
	return nil
}

func (s *FlowScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *FlowScheduler) popReady() (dag.NodeID, bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	if len(s.ready) == 0 {
		return 0, false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	depth := len(s.ready)
	if s.metrics != nil {
		s.metrics.readyDepth.Set(float64(depth))
	}
	return id, true
}

// Spawn selects a target worker round-robin (by a task-id generator)
// and pushes t onto that worker's local deque. It returns
// ErrSchedulerFull, never blocking, if that worker's deque is at
// capacity.
func (s *FlowScheduler) Spawn(t *task.Task) error {
	s.spawnMu.Lock()
	worker := int(s.spawnCounter % uint64(s.pool.NumWorkers()))
	s.spawnCounter++
	s.spawnMu.Unlock()
	return s.SpawnOn(worker, t)
}

// SpawnOn pushes t directly onto a named worker's deque, returning
// ErrSchedulerFull if that deque is already at its configured maximum
// size, ErrInvalidOperation if worker names no worker in this pool, or
// ErrNotRunning if the scheduler has already been Stop-ped.
func (s *FlowScheduler) SpawnOn(worker int, t *task.Task) error {
	if s.stoppedAfterStart() {
		return ErrNotRunning
	}
	if worker < 0 || worker >= s.pool.NumWorkers() {
		return ErrInvalidOperation
	}
	if err := s.pool.Deque(worker).PushFront(t); err != nil {
		return ErrSchedulerFull
	}
	s.signal()
	return nil
}

// Start launches the worker pool; each worker loops per spec §4.8's
// four-step priority (local deque -> ready queue -> batch steal ->
// idle sleep) until Stop is called.
func (s *FlowScheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.everStarted = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runMu.Unlock()

	for i := 0; i < s.pool.NumWorkers(); i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}
}

// Stop clears the running flag, wakes every worker, and joins them.
func (s *FlowScheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *FlowScheduler) isRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// stoppedAfterStart reports whether Stop has torn down a scheduler that
// was previously Start-ed. Work submitted before the first Start is
// still accepted (AddNodeReady/Spawn double as root/initial-task
// seeding ahead of Start, per the existing tests), but resubmitting
// after an explicit Stop is a programming error — spec §5's scheduler
// lifecycle has no "wake a stopped scheduler back up" operation.
func (s *FlowScheduler) stoppedAfterStart() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.everStarted && !s.running
}

func (s *FlowScheduler) workerLoop(ctx context.Context, id int) {
	defer s.wg.Done()

	for s.isRunning() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t := s.pool.Deque(id).PopFront(); t != nil {
			task.Run(ctx, t)
			continue
		}

		if nodeID, ok := s.popReady(); ok {
			s.executeNode(ctx, nodeID)
			continue
		}

		if s.cfg.StealEnabled {
			if batch := s.pool.StealBatch(id, s.cfg.StealBatch); len(batch) > 0 {
				for _, t := range batch {
					task.Run(ctx, t)
				}
				continue
			}
		}

		select {
		case <-s.wake:
		case <-time.After(s.cfg.IdleTimeout):
		case <-ctx.Done():
			return
		}
	}
}

// executeNode runs one DAG node, records its completion, and pushes
// any dependent whose dependency set is now fully satisfied into the
// ready queue.
func (s *FlowScheduler) executeNode(ctx context.Context, id dag.NodeID) {
	if s.nodeSem != nil {
		if err := s.nodeSem.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.nodeSem.Release(1)
	}
	if s.metrics != nil {
		s.metrics.activeNodes.Inc()
		defer s.metrics.activeNodes.Dec()
	}

	if err := s.exec(ctx, id); err != nil {
		// A failed node never marks itself (or its dependents)
		// completed: transitively dependent nodes never become ready,
		// matching spec §7's "a failed task fails only that task and
		// its transitively dependent DAG nodes."
		return
	}

	s.completedMu.Lock()
	s.completed[id] = true
	completedSnapshot := make(map[dag.NodeID]bool, len(s.completed))
	for k, v := range s.completed {
		completedSnapshot[k] = v
	}
	s.completedMu.Unlock()

	node, err := s.graph.Node(id)
	if err != nil {
		return
	}
	for _, dependentID := range s.graph.Dependents(node.ID) {
		deps := s.graph.Dependencies(dependentID)
		ready := true
		for _, d := range deps {
			if !completedSnapshot[d] {
				ready = false
				break
			}
		}
		if ready && !completedSnapshot[dependentID] {
			s.AddNodeReady(dependentID)
		}
	}
}

func (s *FlowScheduler) Completed(id dag.NodeID) bool {
	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	return s.completed[id]
}

func (s *FlowScheduler) CompletedCount() int {
	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	return len(s.completed)
}
