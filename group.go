package statline

import "sync"

// MetricGroup registers sibling metrics of one name that differ only in
// tag values, deduplicating by a caller-chosen key.
type MetricGroup[K comparable, M Metric] struct {
	c           *Collector
	name        string
	unit        string
	description string
	factory     func(K) M

	mu      sync.Mutex
	members map[K]M
}

// NewMetricGroup builds a group over c. factory constructs the unattached
// metric for a given key, typically translating the key into tag values.
func NewMetricGroup[K comparable, M Metric](c *Collector, name, unit, description string, factory func(K) M) *MetricGroup[K, M] {
	return &MetricGroup[K, M]{
		c:           c,
		name:        name,
		unit:        unit,
		description: description,
		factory:     factory,
		members:     make(map[K]M),
	}
}

// Add returns the member for key, registering it on first use.
func (g *MetricGroup[K, M]) Add(key K) (M, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[key]; ok {
		return m, nil
	}
	m, err := GetMetric(g.c, g.name, g.unit, g.description, func() M { return g.factory(key) })
	if err != nil {
		var zero M
		return zero, err
	}
	g.members[key] = m
	return m, nil
}

// Len returns the number of registered members.
func (g *MetricGroup[K, M]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}
