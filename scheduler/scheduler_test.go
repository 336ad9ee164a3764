package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaoxiang-lang/yaoxiang/dag"
	"github.com/yaoxiang-lang/yaoxiang/task"
)

// buildFourConstantScenario mirrors the spec's four-constant-roots scenario:
// two compute nodes each depending on two distinct constants, a final
// node depending on both composites.
func buildFourConstantScenario(t *testing.T) (*dag.Graph, []dag.NodeID, dag.NodeID, dag.NodeID, dag.NodeID) {
	g := dag.New()
	consts := make([]dag.NodeID, 4)
	for i := range consts {
		id, err := g.AddNode(dag.NodeConstant, "")
		require.NoError(t, err)
		consts[i] = id
	}
	comp1, _ := g.AddNode(dag.NodeCompute, "comp1")
	comp2, _ := g.AddNode(dag.NodeCompute, "comp2")
	final, _ := g.AddNode(dag.NodeCompute, "final")

	require.NoError(t, g.AddEdge(consts[0], comp1, true))
	require.NoError(t, g.AddEdge(consts[1], comp1, true))
	require.NoError(t, g.AddEdge(consts[2], comp2, true))
	require.NoError(t, g.AddEdge(consts[3], comp2, true))
	require.NoError(t, g.AddEdge(comp1, final, true))
	require.NoError(t, g.AddEdge(comp2, final, true))
	return g, consts, comp1, comp2, final
}

func TestSchedulerNeverRunsFinalNodeBeforeBothComposites(t *testing.T) {
	g, consts, comp1, comp2, final := buildFourConstantScenario(t)

	var mu sync.Mutex
	var executedOrder []dag.NodeID
	exec := func(ctx context.Context, id dag.NodeID) error {
		mu.Lock()
		executedOrder = append(executedOrder, id)
		mu.Unlock()
		return nil
	}

	s := New(g, exec, Config{NumWorkers: 4, StealEnabled: true, StealBatch: 2, StealAttempts: 4, IdleTimeout: time.Millisecond})
	for _, c := range consts {
		s.AddNodeReady(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return s.CompletedCount() == 7
	}, 2*time.Second, time.Millisecond)

	cancel()
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	pos := make(map[dag.NodeID]int)
	for i, id := range executedOrder {
		pos[id] = i
	}
	assert.Less(t, pos[comp1], pos[final])
	assert.Less(t, pos[comp2], pos[final])
	assert.Equal(t, 4, g.MaxParallelism())
}

func TestSpawnRoundRobinsAcrossWorkers(t *testing.T) {
	g := dag.New()
	exec := func(ctx context.Context, id dag.NodeID) error { return nil }
	s := New(g, exec, Config{NumWorkers: 2, IdleTimeout: time.Millisecond})

	spawner := task.NewSpawner()
	var ran sync.WaitGroup
	ran.Add(2)
	for i := 0; i < 2; i++ {
		tk := spawner.New(task.Config{Body: func(ctx context.Context) (interface{}, error) {
			ran.Done()
			return nil, nil
		}})
		s.Spawn(tk)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	done := make(chan struct{})
	go func() { ran.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never ran")
	}
	cancel()
	s.Stop()
}

func TestFailedNodeNeverMarksDependentsReady(t *testing.T) {
	g := dag.New()
	a, _ := g.AddNode(dag.NodeCompute, "a")
	b, _ := g.AddNode(dag.NodeCompute, "b")
	require.NoError(t, g.AddEdge(a, b, true))

	exec := func(ctx context.Context, id dag.NodeID) error {
		if id == a {
			return assert.AnError
		}
		return nil
	}

	s := New(g, exec, Config{NumWorkers: 1, IdleTimeout: time.Millisecond})
	s.AddNodeReady(a)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.Stop()

	assert.False(t, s.Completed(a))
	assert.False(t, s.Completed(b))
}

func TestMaxInFlightNodesBoundsConcurrentExecution(t *testing.T) {
	g := dag.New()
	ids := make([]dag.NodeID, 6)
	for i := range ids {
		id, err := g.AddNode(dag.NodeCompute, "")
		require.NoError(t, err)
		ids[i] = id
	}

	var mu sync.Mutex
	active, peak := 0, 0
	exec := func(ctx context.Context, id dag.NodeID) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	s := New(g, exec, Config{
		NumWorkers:       6,
		IdleTimeout:      time.Millisecond,
		MaxInFlightNodes: 2,
		Metrics:          metrics,
	})
	for _, id := range ids {
		s.AddNodeReady(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return s.CompletedCount() == len(ids)
	}, 2*time.Second, time.Millisecond)

	cancel()
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestSpawnOnFullDequeReportsSchedulerError(t *testing.T) {
	g := dag.New()
	exec := func(ctx context.Context, id dag.NodeID) error { return nil }
	s := New(g, exec, Config{NumWorkers: 1, MaxDequeSize: 1, IdleTimeout: time.Millisecond})

	spawner := task.NewSpawner()
	block := make(chan struct{})
	tk1 := spawner.New(task.Config{Body: func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	}})
	tk2 := spawner.New(task.Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})

	require.NoError(t, s.SpawnOn(0, tk1))
	err := s.SpawnOn(0, tk2)
	require.ErrorIs(t, err, ErrSchedulerFull)
	close(block)
}

func TestSpawnOnOutOfRangeWorkerReportsInvalidOperation(t *testing.T) {
	g := dag.New()
	exec := func(ctx context.Context, id dag.NodeID) error { return nil }
	s := New(g, exec, Config{NumWorkers: 2, IdleTimeout: time.Millisecond})

	spawner := task.NewSpawner()
	tk := spawner.New(task.Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})

	err := s.SpawnOn(5, tk)
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestSpawnAndAddNodeReadyRejectedAfterStop(t *testing.T) {
	g := dag.New()
	a, _ := g.AddNode(dag.NodeCompute, "a")
	exec := func(ctx context.Context, id dag.NodeID) error { return nil }
	s := New(g, exec, Config{NumWorkers: 1, IdleTimeout: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Stop()

	spawner := task.NewSpawner()
	tk := spawner.New(task.Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	require.ErrorIs(t, s.Spawn(tk), ErrNotRunning)
	require.ErrorIs(t, s.SpawnOn(0, tk), ErrNotRunning)
	require.ErrorIs(t, s.AddNodeReady(a), ErrNotRunning)
}

func TestAddNodeReadyBeforeFirstStartIsAccepted(t *testing.T) {
	g := dag.New()
	a, _ := g.AddNode(dag.NodeCompute, "a")
	exec := func(ctx context.Context, id dag.NodeID) error { return nil }
	s := New(g, exec, Config{NumWorkers: 1, IdleTimeout: time.Millisecond})

	require.NoError(t, s.AddNodeReady(a))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return s.CompletedCount() == 1 }, 2*time.Second, time.Millisecond)
	cancel()
	s.Stop()
}
