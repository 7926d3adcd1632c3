package infra

import (
	"sync"
	"time"
)

// RealClock delega para o pacote time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock é um relógio controlado manualmente, usado para testar as
// janelas sem esperar o tempo passar. Seguro para uso concorrente.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance avança o relógio. Panics se d for negativo.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("infra: cannot advance clock by negative duration")
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
