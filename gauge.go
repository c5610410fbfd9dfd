package statline

import (
	"math"
	"sync/atomic"
	"time"
)

// SamplingGauge keeps the most recently recorded value. Each snapshot
// emits the latest value, once anything has been recorded.
type SamplingGauge struct {
	metricBase
	bits     atomic.Uint64
	recorded atomic.Bool
	pending  float64
	has      bool
}

// NewSamplingGauge returns an unattached sampling gauge.
func NewSamplingGauge(tags TagSet) *SamplingGauge {
	return &SamplingGauge{metricBase: metricBase{tags: tags}}
}

// Record stores v as the current value.
func (g *SamplingGauge) Record(v float64) error {
	if err := g.recordable(); err != nil {
		return err
	}
	g.bits.Store(math.Float64bits(v))
	g.recorded.Store(true)
	return nil
}

func (g *SamplingGauge) metricType() MetricType { return TypeGauge }
func (g *SamplingGauge) rateKind() RateKind     { return RateGauge }

func (g *SamplingGauge) preSerialize() {
	g.has = g.recorded.Load()
	g.pending = math.Float64frombits(g.bits.Load())
}

func (g *SamplingGauge) serialize(sink ReadingSink, now time.Time) {
	if !g.has {
		return
	}
	sink.Add(g.reading("", TypeGauge, g.pending, now))
}

// EventGauge buffers every recorded (value, time) pair and emits one
// reading per event, in arrival order, with the event's own timestamp.
type EventGauge struct {
	metricBase
	events  bag
	pending []bagValue
}

// NewEventGauge returns an unattached event gauge.
func NewEventGauge(tags TagSet) *EventGauge {
	g := &EventGauge{metricBase: metricBase{tags: tags}}
	g.events.init()
	return g
}

// Record buffers v stamped with the current time.
func (g *EventGauge) Record(v float64) error {
	return g.RecordAt(v, time.Now().UTC())
}

// RecordAt buffers v stamped with t.
func (g *EventGauge) RecordAt(v float64, t time.Time) error {
	if err := g.recordable(); err != nil {
		return err
	}
	g.events.add(v, t.UnixMilli())
	return nil
}

func (g *EventGauge) metricType() MetricType { return TypeGauge }
func (g *EventGauge) rateKind() RateKind     { return RateGauge }

func (g *EventGauge) preSerialize() {
	g.pending = g.events.drain()
}

func (g *EventGauge) serialize(sink ReadingSink, _ time.Time) {
	for _, e := range g.pending {
		sink.Add(g.reading("", TypeGauge, e.Value, time.UnixMilli(e.UnixMilli).UTC()))
	}
	g.pending = nil
}

// SnapshotGauge reports a caller-supplied value once per snapshot. The
// producer returning ok=false (or panicking) means no reading this cycle.
type SnapshotGauge struct {
	metricBase
	produce func() (float64, bool)
	pending float64
	has     bool
}

// NewSnapshotGauge returns an unattached snapshot gauge backed by produce.
func NewSnapshotGauge(tags TagSet, produce func() (float64, bool)) *SnapshotGauge {
	return &SnapshotGauge{metricBase: metricBase{tags: tags}, produce: produce}
}

func (g *SnapshotGauge) metricType() MetricType { return TypeGauge }
func (g *SnapshotGauge) rateKind() RateKind     { return RateGauge }

func (g *SnapshotGauge) preSerialize() {
	g.has = false
	if g.produce == nil {
		return
	}
	defer func() {
		if recover() != nil {
			g.has = false
		}
	}()
	if v, ok := g.produce(); ok {
		g.pending = v
		g.has = true
	}
}

func (g *SnapshotGauge) serialize(sink ReadingSink, now time.Time) {
	if !g.has {
		return
	}
	sink.Add(g.reading("", TypeGauge, g.pending, now))
}
