package statline

import "time"

// MetricType is the wire-level type of a reading.
type MetricType string

const (
	// TypeCounter is a per-window delta.
	TypeCounter MetricType = "counter"
	// TypeCumulativeCounter is a monotonically increasing absolute value.
	TypeCumulativeCounter MetricType = "cumulative_counter"
	// TypeGauge is a point-in-time measurement.
	TypeGauge MetricType = "gauge"
)

// RateKind is the metadata-level rate classification of a metric. It is
// determined by the metric type, never by the caller.
type RateKind string

const (
	RateCounter    RateKind = "counter"
	RateRate       RateKind = "rate"
	RateGauge      RateKind = "gauge"
	RateCumulative RateKind = "cumulative-counter"
)

// Reading is a single serializable observation. Immutable once constructed.
type Reading struct {
	Name   string
	Suffix string
	Type   MetricType
	Value  float64
	Tags   *SerializedTags
	Time   time.Time
}

// FullName returns the metric name with its aggregate suffix appended.
func (r Reading) FullName() string {
	if r.Suffix == "" {
		return r.Name
	}
	return r.Name + r.Suffix
}

// ReadingSink accepts readings during serialization. The collector hands
// each metric a sink belonging to the endpoint being serialized.
type ReadingSink interface {
	Add(Reading)
}

// MetricDefinition carries the per-name metadata shipped on the metadata
// interval.
type MetricDefinition struct {
	Name        string
	Unit        string
	Description string
	Type        MetricType
	Rate        RateKind
}

var (
	minReadingTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxReadingTime = time.Date(2251, 1, 1, 0, 0, 0, 0, time.UTC)
)

func validateReadingTime(t time.Time) bool {
	return !t.Before(minReadingTime) && t.Before(maxReadingTime)
}
