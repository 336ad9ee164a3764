// Package stealer implements the work-stealing layer: per-worker
// deques, randomized victim selection, batch stealing, and the
// thread-safe stats the scheduler reports. Grounded on the pack's
// Chase-Lev-flavored WSDeque/WorkStealingExecutor
// (other_examples/.../optimizations_advanced.go.go), adapted from a
// global goroutine pool to per-worker task.Task deques addressed by
// worker index.
package stealer

import (
	"errors"
	"sync"

	"github.com/yaoxiang-lang/yaoxiang/task"
)

// Strategy selects which end of a victim's deque a thief steals from.
type Strategy byte

const (
	StrategyBack Strategy = iota
	StrategyFront
	StrategyRandom
)

// ErrDequeFull is returned by PushFront when the deque is at its
// configured maximum size. Per spec §5's backpressure policy, a full
// deque signals this to the spawner rather than blocking, to keep
// spawning non-suspending.
var ErrDequeFull = errors.New("stealer: deque full")

// Deque is one worker's local task queue. The owner pushes and pops
// from the front (LIFO, cache-friendly per spec §4.7); thieves steal
// from the back by default to keep owner and thief at opposite ends.
type Deque struct {
	mu      sync.Mutex
	data    []*task.Task
	maxSize int // 0 means unbounded
}

func NewDeque() *Deque {
	return &Deque{}
}

// NewBoundedDeque creates a deque that rejects PushFront once it holds
// maxSize tasks.
func NewBoundedDeque(maxSize int) *Deque {
	return &Deque{maxSize: maxSize}
}

// PushFront is the owner's push. It fails with ErrDequeFull if the
// deque has a configured maximum size and is already at capacity.
func (d *Deque) PushFront(t *task.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maxSize > 0 && len(d.data) >= d.maxSize {
		return ErrDequeFull
	}
	d.data = append([]*task.Task{t}, d.data...)
	return nil
}

// PopFront is the owner's pop.
func (d *Deque) PopFront() *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.data) == 0 {
		return nil
	}
	t := d.data[0]
	d.data = d.data[1:]
	return t
}

// StealBack is a thief's default pop, taking from the opposite end of
// the owner's pushes.
func (d *Deque) StealBack() *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.data)
	if n == 0 {
		return nil
	}
	t := d.data[n-1]
	d.data = d.data[:n-1]
	return t
}

// StealFront takes from the same end the owner pushes to, used when a
// worker pool is configured with StrategyFront.
func (d *Deque) StealFront() *task.Task {
	return d.PopFront()
}

func (d *Deque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data)
}

// StealBatch repeatedly steals from the back, up to max items, and
// returns whatever was harvested (possibly fewer than max, possibly
// none).
func (d *Deque) StealBatch(max int) []*task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.data)
	if n == 0 || max <= 0 {
		return nil
	}
	if max > n {
		max = n
	}
	harvested := make([]*task.Task, max)
	copy(harvested, d.data[n-max:])
	d.data = d.data[:n-max]
	return harvested
}
