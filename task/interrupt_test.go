package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterruptSlotTimeout(t *testing.T) {
	s := NewInterruptSlot()
	_, ok := s.CheckAndClear()
	assert.False(t, ok)

	s.SetTimeout(100 * time.Millisecond)
	intr, ok := s.CheckAndClear()
	assert.True(t, ok)
	assert.Equal(t, InterruptTimeout, intr.Kind)
	assert.Equal(t, 100*time.Millisecond, intr.Timeout)

	_, ok = s.CheckAndClear()
	assert.False(t, ok)
}

func TestInterruptSlotBreakpoint(t *testing.T) {
	s := NewInterruptSlot()
	s.SetBreakpoint(42)
	intr, ok := s.CheckAndClear()
	assert.True(t, ok)
	assert.Equal(t, InterruptBreakpoint, intr.Kind)
	assert.Equal(t, uint64(42), intr.Breakpoint)
}

func TestInterruptSlotStackOverflow(t *testing.T) {
	s := NewInterruptSlot()
	s.SetStackOverflow()
	intr, ok := s.CheckAndClear()
	assert.True(t, ok)
	assert.Equal(t, InterruptStackOverflow, intr.Kind)
}

func TestInterruptSlotMemoryViolation(t *testing.T) {
	s := NewInterruptSlot()
	s.SetMemoryViolation(0xDEADBEEF, AccessWrite)
	intr, ok := s.CheckAndClear()
	assert.True(t, ok)
	assert.Equal(t, InterruptMemoryViolation, intr.Kind)
	assert.Equal(t, uint64(0xDEADBEEF), intr.Address)
	assert.Equal(t, AccessWrite, intr.Access)
}

func TestInterruptSlotHasInterruptAndClear(t *testing.T) {
	s := NewInterruptSlot()
	s.SetTimeout(time.Second)
	assert.True(t, s.HasInterrupt())

	s.Clear()
	assert.False(t, s.HasInterrupt())
}

func TestNewTaskHasEmptyInterruptSlot(t *testing.T) {
	sp := NewSpawner()
	tk := sp.New(Config{Body: func(ctx context.Context) (interface{}, error) { return nil, nil }})
	assert.NotNil(t, tk.Interrupt)
	assert.False(t, tk.Interrupt.HasInterrupt())
}
