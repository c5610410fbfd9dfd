package statline

import (
	"sync/atomic"
	"time"
)

// Counter accumulates an int64 delta that is reset on every snapshot.
type Counter struct {
	metricBase
	count   atomic.Int64
	pending int64
}

// NewCounter returns an unattached counter with the given tags.
func NewCounter(tags TagSet) *Counter {
	return &Counter{metricBase: metricBase{tags: tags}}
}

// Increment adds one to the counter.
func (c *Counter) Increment() error { return c.Add(1) }

// Add adds n to the counter.
func (c *Counter) Add(n int64) error {
	if err := c.recordable(); err != nil {
		return err
	}
	c.count.Add(n)
	return nil
}

func (c *Counter) metricType() MetricType { return TypeCounter }
func (c *Counter) rateKind() RateKind     { return RateCounter }

func (c *Counter) preSerialize() {
	c.pending = c.count.Swap(0)
}

func (c *Counter) serialize(sink ReadingSink, now time.Time) {
	if c.pending == 0 {
		return
	}
	sink.Add(c.reading("", TypeCounter, float64(c.pending), now))
}

// CumulativeCounter accumulates an int64 total that is never reset. Each
// snapshot emits the absolute running value.
type CumulativeCounter struct {
	metricBase
	count   atomic.Int64
	pending int64
}

// NewCumulativeCounter returns an unattached cumulative counter.
func NewCumulativeCounter(tags TagSet) *CumulativeCounter {
	return &CumulativeCounter{metricBase: metricBase{tags: tags}}
}

// Increment adds one to the running total.
func (c *CumulativeCounter) Increment() error { return c.Add(1) }

// Add adds n to the running total.
func (c *CumulativeCounter) Add(n int64) error {
	if err := c.recordable(); err != nil {
		return err
	}
	c.count.Add(n)
	return nil
}

// Value returns the current running total.
func (c *CumulativeCounter) Value() int64 { return c.count.Load() }

func (c *CumulativeCounter) metricType() MetricType { return TypeCumulativeCounter }
func (c *CumulativeCounter) rateKind() RateKind     { return RateCumulative }

func (c *CumulativeCounter) preSerialize() {
	c.pending = c.count.Load()
}

func (c *CumulativeCounter) serialize(sink ReadingSink, now time.Time) {
	sink.Add(c.reading("", TypeCumulativeCounter, float64(c.pending), now))
}

// SnapshotCounter reports a caller-supplied value once per snapshot. The
// producer returning ok=false (or panicking) means no reading this cycle.
type SnapshotCounter struct {
	metricBase
	produce func() (int64, bool)
	pending int64
	has     bool
}

// NewSnapshotCounter returns an unattached snapshot counter backed by
// produce.
func NewSnapshotCounter(tags TagSet, produce func() (int64, bool)) *SnapshotCounter {
	return &SnapshotCounter{metricBase: metricBase{tags: tags}, produce: produce}
}

func (c *SnapshotCounter) metricType() MetricType { return TypeCounter }
func (c *SnapshotCounter) rateKind() RateKind     { return RateRate }

func (c *SnapshotCounter) preSerialize() {
	c.has = false
	if c.produce == nil {
		return
	}
	defer func() {
		if recover() != nil {
			c.has = false
		}
	}()
	if v, ok := c.produce(); ok {
		c.pending = v
		c.has = true
	}
}

func (c *SnapshotCounter) serialize(sink ReadingSink, now time.Time) {
	if !c.has {
		return
	}
	sink.Add(c.reading("", TypeCounter, float64(c.pending), now))
}
