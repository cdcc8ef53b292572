package app

import (
	"context"
	"sync/atomic"

	"github.com/km-arc/go-beans/framework/container"
)

// PrototypeCounter is a prototype bean: every lookup gets a fresh counter.
type PrototypeCounter struct {
	count atomic.Int64
}

func (c *PrototypeCounter) AddCount() { c.count.Add(1) }

func (c *PrototypeCounter) Count() int64 { return c.count.Load() }

// CounterClient is a singleton that asks for a new PrototypeCounter on every
// call instead of holding one.
type CounterClient struct {
	counters container.Provider[*PrototypeCounter]
}

func NewCounterClient(counters container.Provider[*PrototypeCounter]) *CounterClient {
	return &CounterClient{counters: counters}
}

// Logic increments a fresh counter and returns its value, which is always 1.
func (c *CounterClient) Logic(ctx context.Context) (int64, error) {
	counter, err := c.counters.Get(ctx)
	if err != nil {
		return 0, err
	}
	counter.AddCount()
	return counter.Count(), nil
}
