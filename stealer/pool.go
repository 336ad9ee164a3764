package stealer

import (
	"sync/atomic"

	"github.com/yaoxiang-lang/yaoxiang/task"
)

// Stats are thread-safe monotonic counters tracking steal activity
// across the whole pool, for observability.
type Stats struct {
	Attempts     atomic.Uint64
	Successes    atomic.Uint64
	Failures     atomic.Uint64
	TasksStolen  atomic.Uint64
}

// lcgState is a simple linear-congruential generator, seeded
// per-worker, used for victim selection — spec §4.7 specifies an LCG
// rather than crypto/math randomness, since this is a scheduling
// heuristic, not a security boundary.
type lcgState struct {
	state uint64
}

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

func newLCG(seed uint64) *lcgState {
	return &lcgState{state: seed}
}

func (l *lcgState) next() uint64 {
	l.state = l.state*lcgMultiplier + lcgIncrement
	return l.state
}

// Pool owns every worker's deque and the stats all steal attempts are
// recorded against. Workers are addressed by dense index.
type Pool struct {
	deques      []*Deque
	strategy    Strategy
	maxAttempts int
	stats       Stats
	rngs        []*lcgState
	metrics     *Metrics
}

// NewPool creates a Pool with one deque per worker, numbered
// [0, numWorkers), each deque unbounded.
func NewPool(numWorkers int, strategy Strategy, maxAttempts int) *Pool {
	return NewBoundedPool(numWorkers, strategy, maxAttempts, 0)
}

// NewBoundedPool is NewPool with each worker's deque capped at
// maxDequeSize tasks (0 means unbounded), per spec §5's per-worker
// backpressure policy.
func NewBoundedPool(numWorkers int, strategy Strategy, maxAttempts int, maxDequeSize int) *Pool {
	p := &Pool{
		deques:      make([]*Deque, numWorkers),
		strategy:    strategy,
		maxAttempts: maxAttempts,
		rngs:        make([]*lcgState, numWorkers),
	}
	for i := range p.deques {
		p.deques[i] = NewBoundedDeque(maxDequeSize)
		p.rngs[i] = newLCG(uint64(i)*2654435761 + 1)
	}
	return p
}

func (p *Pool) Deque(worker int) *Deque {
	return p.deques[worker]
}

func (p *Pool) NumWorkers() int {
	return len(p.deques)
}

// pickVictim returns a random worker index other than self, using the
// caller's LCG.
func (p *Pool) pickVictim(self int) int {
	n := len(p.deques)
	if n <= 1 {
		return self
	}
	v := int(p.rngs[self].next() % uint64(n-1))
	if v >= self {
		v++
	}
	return v
}

// Steal attempts up to maxAttempts random-victim steals from self's
// point of view, using the pool's configured strategy (or a per-attempt
// coin flip under StrategyRandom), and records the outcome in Stats.
func (p *Pool) Steal(self int) *task.Task {
	for i := 0; i < p.maxAttempts; i++ {
		p.stats.Attempts.Add(1)
		if p.metrics != nil {
			p.metrics.attempts.Inc()
		}
		victim := p.pickVictim(self)
		if victim == self {
			p.stats.Failures.Add(1)
			if p.metrics != nil {
				p.metrics.failures.Inc()
			}
			continue
		}

		strategy := p.strategy
		if strategy == StrategyRandom {
			if p.rngs[self].next()%2 == 0 {
				strategy = StrategyBack
			} else {
				strategy = StrategyFront
			}
		}

		var stolen *task.Task
		if strategy == StrategyFront {
			stolen = p.deques[victim].StealFront()
		} else {
			stolen = p.deques[victim].StealBack()
		}

		if stolen != nil {
			p.stats.Successes.Add(1)
			p.stats.TasksStolen.Add(1)
			if p.metrics != nil {
				p.metrics.successes.Inc()
				p.metrics.tasksStolen.Inc()
			}
			return stolen
		}
		p.stats.Failures.Add(1)
		if p.metrics != nil {
			p.metrics.failures.Inc()
		}
	}
	return nil
}

// StealBatch selects one random victim and harvests up to max tasks
// from its back in one locked operation.
func (p *Pool) StealBatch(self int, max int) []*task.Task {
	victim := p.pickVictim(self)
	if victim == self {
		return nil
	}
	p.stats.Attempts.Add(1)
	if p.metrics != nil {
		p.metrics.attempts.Inc()
	}
	batch := p.deques[victim].StealBatch(max)
	if len(batch) == 0 {
		p.stats.Failures.Add(1)
		if p.metrics != nil {
			p.metrics.failures.Inc()
		}
		return nil
	}
	p.stats.Successes.Add(1)
	p.stats.TasksStolen.Add(uint64(len(batch)))
	if p.metrics != nil {
		p.metrics.successes.Inc()
		for i := 0; i < len(batch); i++ {
			p.metrics.tasksStolen.Inc()
		}
	}
	return batch
}

func (p *Pool) Stats() *Stats {
	return &p.stats
}
