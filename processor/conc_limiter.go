package processor

import (
	"runtime"
	"sync"
)

// ConcLimiter caps the number of chunk workers running at once.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

// Increase blocks until a worker slot is free.
func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.Pool:
		c.Done()
	default:
	}
}

// NewConcLimiter returns a limiter for cLevel workers; cLevel <= 0 means
// one per CPU.
func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel <= 0 {
		cLevel = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}

// Level is the maximum number of concurrent workers.
func (c *ConcLimiter) Level() int {
	return cap(c.Pool)
}
