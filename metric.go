package statline

import (
	"sync/atomic"
	"time"
)

// Metric is the polymorphic surface shared by every metric type. Record
// operations are safe from many goroutines; preSerialize and serialize are
// invoked only by the collector goroutine. Implementations live in this
// package; user code composes them via the collector constructors or
// BindMetric.
type Metric interface {
	// TagValues returns the tags declared at construction time.
	TagValues() TagSet

	metricType() MetricType
	rateKind() RateKind
	attach(fullName string, tags *SerializedTags, state *atomic.Int32) error
	preSerialize()
	serialize(sink ReadingSink, now time.Time)
}

// metricBase carries the attachment state shared by all metric types.
// Once attached, the name and tags never change.
type metricBase struct {
	tags     TagSet
	name     string
	ser      *SerializedTags
	state    *atomic.Int32
	attached atomic.Bool
}

func (b *metricBase) TagValues() TagSet { return b.tags }

func (b *metricBase) attach(fullName string, tags *SerializedTags, state *atomic.Int32) error {
	if b.attached.Load() {
		return ErrDuplicateMetric
	}
	b.name = fullName
	b.ser = tags
	b.state = state
	b.attached.Store(true)
	return nil
}

// recordable gates the hot path: metrics reject records before attachment
// and after the collector has closed. Records during draining are allowed.
func (b *metricBase) recordable() error {
	if !b.attached.Load() {
		return ErrNotAttached
	}
	if b.state.Load() == collectorClosed {
		return ErrClosed
	}
	return nil
}

func (b *metricBase) reading(suffix string, typ MetricType, value float64, t time.Time) Reading {
	return Reading{
		Name:   b.name,
		Suffix: suffix,
		Type:   typ,
		Value:  value,
		Tags:   b.ser,
		Time:   t,
	}
}
