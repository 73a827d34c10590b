// Package progress turns per-combination search steps into fractional progress
// values and gates how often those values leave the worker.
//
// The search can evaluate millions of combinations per second, far more often
// than any consumer wants to hear about it. A Throttle forwards a value only when
// at least one interval has passed since the last forwarded value:
//
//	throttle := progress.NewThrottle(time.Second, queue.Push)
//	counter := progress.NewCounter(total, throttle.Report)
//	counter.Step() // called once per evaluated combination
package progress

import (
	"time"

	"golang.org/x/time/rate"
)

// Sink receives a completion fraction in [0, 1].
type Sink func(fraction float64)

// Discard is a Sink that drops every value.
func Discard(float64) {}

// Counter accumulates evaluated steps against a fixed denominator and reports
// the clamped fraction to its sink after every step. Values never decrease.
type Counter struct {
	done  uint64
	total float64
	sink  Sink
}

// NewCounter creates a counter. A nil sink discards values.
func NewCounter(total float64, sink Sink) *Counter {
	if sink == nil {
		sink = Discard
	}
	return &Counter{total: total, sink: sink}
}

// Step records one evaluated combination.
func (c *Counter) Step() {
	c.done++
	c.sink(c.Fraction())
}

// Fraction returns done/total clamped to [0, 1].
func (c *Counter) Fraction() float64 {
	if c.total <= 0 {
		return 1
	}
	f := float64(c.done) / c.total
	if f > 1 {
		return 1
	}
	return f
}

// Done returns the number of steps recorded so far.
func (c *Counter) Done() uint64 {
	return c.done
}

// Throttle forwards at most one value per interval and drops the rest.
// Dropped values are not queued. Neither the first nor the final value of a
// run is guaranteed to be forwarded.
type Throttle struct {
	limiter *rate.Limiter
	sink    Sink
}

// NewThrottle wraps sink. The interval clock starts at construction, so the
// earliest forwarded value arrives one interval after the throttle is created.
// An interval <= 0 forwards every value.
func NewThrottle(interval time.Duration, sink Sink) *Throttle {
	if sink == nil {
		sink = Discard
	}
	t := &Throttle{sink: sink}
	if interval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(interval), 1)
		t.limiter.Allow()
	}
	return t
}

// Report offers a value to the throttle.
func (t *Throttle) Report(fraction float64) {
	if t.limiter != nil && !t.limiter.Allow() {
		return
	}
	t.sink(fraction)
}
