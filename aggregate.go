package statline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"
)

type aggKind uint8

const (
	aggLast aggKind = iota
	aggCount
	aggMean
	aggMedian
	aggPercentile
	aggMin
	aggMax
	aggSum
)

// Aggregate selects one derived summary emitted by an AggregateGauge. Each
// aggregate contributes a distinct reading suffix.
type Aggregate struct {
	kind       aggKind
	percentile float64
	suffix     string
}

// Suffix returns the reading suffix the aggregate emits under.
func (a Aggregate) Suffix() string { return a.suffix }

// AggregateLast emits the last recorded value with no suffix.
func AggregateLast() Aggregate { return Aggregate{kind: aggLast} }

// AggregateCount emits the sample count with suffix "_count".
func AggregateCount() Aggregate { return Aggregate{kind: aggCount, suffix: "_count"} }

// AggregateMean emits the arithmetic mean with suffix "_avg".
func AggregateMean() Aggregate { return Aggregate{kind: aggMean, suffix: "_avg"} }

// AggregateMedian emits the nearest-rank median with suffix "_median".
func AggregateMedian() Aggregate { return Aggregate{kind: aggMedian, suffix: "_median"} }

// AggregateMin emits the minimum with suffix "_min".
func AggregateMin() Aggregate { return Aggregate{kind: aggMin, suffix: "_min"} }

// AggregateMax emits the maximum with suffix "_max".
func AggregateMax() Aggregate { return Aggregate{kind: aggMax, suffix: "_max"} }

// AggregateSum emits the sum with suffix "_sum".
func AggregateSum() Aggregate { return Aggregate{kind: aggSum, suffix: "_sum"} }

// AggregatePercentile emits the nearest-rank percentile for p in (0, 1),
// with a suffix such as "_99" for p=0.99 or "_99.9" for p=0.999.
func AggregatePercentile(p float64) Aggregate {
	return Aggregate{
		kind:       aggPercentile,
		percentile: p,
		suffix:     "_" + strconv.FormatFloat(p*100, 'f', -1, 64),
	}
}

// DefaultAggregates is used when an AggregateGauge is built without an
// explicit aggregate list.
var DefaultAggregates = []Aggregate{
	AggregateMean(),
	AggregateMedian(),
	AggregatePercentile(0.95),
	AggregateMax(),
}

// nearestRank returns sorted[ceil(p*n)-1], clamped to the valid range.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

type aggregateReading struct {
	suffix string
	value  float64
}

// AggregateGauge buffers a window of samples and emits one reading per
// enabled aggregate, all stamped with the snapshot time. A window with no
// samples emits nothing.
type AggregateGauge struct {
	metricBase
	aggregates []Aggregate
	samples    bag
	pending    []aggregateReading
}

// NewAggregateGauge returns an unattached aggregate gauge. With no
// aggregates given, DefaultAggregates apply.
func NewAggregateGauge(tags TagSet, aggregates ...Aggregate) *AggregateGauge {
	if len(aggregates) == 0 {
		aggregates = DefaultAggregates
	}
	g := &AggregateGauge{metricBase: metricBase{tags: tags}, aggregates: aggregates}
	g.samples.init()
	return g
}

// Record appends v to the current window.
func (g *AggregateGauge) Record(v float64) error {
	if err := g.recordable(); err != nil {
		return err
	}
	g.samples.add(v, 0)
	return nil
}

func (g *AggregateGauge) metricType() MetricType { return TypeGauge }
func (g *AggregateGauge) rateKind() RateKind     { return RateGauge }

func (g *AggregateGauge) attach(fullName string, tags *SerializedTags, state *atomic.Int32) error {
	seen := make(map[string]bool, len(g.aggregates))
	for _, a := range g.aggregates {
		if a.kind == aggPercentile && (a.percentile <= 0 || a.percentile >= 1) {
			return fmt.Errorf("percentile %v out of (0,1): %w", a.percentile, ErrInconsistentMetadata)
		}
		if seen[a.suffix] {
			return fmt.Errorf("aggregate suffix %q declared twice: %w", a.suffix, ErrInconsistentMetadata)
		}
		seen[a.suffix] = true
	}
	return g.metricBase.attach(fullName, tags, state)
}

func (g *AggregateGauge) preSerialize() {
	window := g.samples.drain()
	g.pending = g.pending[:0]
	if len(window) == 0 {
		return
	}

	last := window[len(window)-1].Value
	values := make([]float64, len(window))
	sum := 0.0
	for i, e := range window {
		values[i] = e.Value
		sum += e.Value
	}
	sort.Float64s(values)

	for _, a := range g.aggregates {
		var v float64
		switch a.kind {
		case aggLast:
			v = last
		case aggCount:
			v = float64(len(values))
		case aggMean:
			v = sum / float64(len(values))
		case aggMedian:
			v = nearestRank(values, 0.5)
		case aggPercentile:
			v = nearestRank(values, a.percentile)
		case aggMin:
			v = values[0]
		case aggMax:
			v = values[len(values)-1]
		case aggSum:
			v = sum
		}
		g.pending = append(g.pending, aggregateReading{suffix: a.suffix, value: v})
	}
}

func (g *AggregateGauge) serialize(sink ReadingSink, now time.Time) {
	for _, ar := range g.pending {
		sink.Add(g.reading(ar.suffix, TypeGauge, ar.value, now))
	}
}
