// Package progress provides a minimal counter that reports its value to a
// callback at a fixed interval. It is used by long-running operations such as
// the repository check.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// A Func is a callback for a Counter.
//
// The final argument is true if Counter.Done has been called, which means
// that the current call will be the last.
type Func func(value uint64, total uint64, runtime time.Duration, final bool)

// A Counter tracks a running count and controls a goroutine that passes its
// value periodically to a Func.
type Counter struct {
	report     Func
	start      time.Time
	stopOnce   sync.Once
	stop       chan struct{}
	stopped    chan struct{}
	value, max atomic.Uint64
}

// NewCounter starts a new Counter. A nil Counter is valid and does nothing.
func NewCounter(interval time.Duration, total uint64, report Func) *Counter {
	c := &Counter{
		report:  report,
		start:   time.Now(),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	c.max.Store(total)

	go c.run(interval)
	return c
}

// Add v to the Counter. This method is concurrency-safe.
func (c *Counter) Add(v uint64) {
	if c != nil {
		c.value.Add(v)
	}
}

// SetMax sets the maximum expected counter value. This method is
// concurrency-safe.
func (c *Counter) SetMax(max uint64) {
	if c != nil {
		c.max.Store(max)
	}
}

// Get returns the current value and the maximum of c. This method is
// concurrency-safe.
func (c *Counter) Get() (v, max uint64) {
	return c.value.Load(), c.max.Load()
}

// Done tells a Counter to stop and emit a final report.
func (c *Counter) Done() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.stopped
	})
}

func (c *Counter) run(interval time.Duration) {
	defer close(c.stopped)

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-tick:
			v, max := c.Get()
			c.report(v, max, time.Since(c.start), false)
		case <-c.stop:
			v, max := c.Get()
			c.report(v, max, time.Since(c.start), true)
			return
		}
	}
}
