package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a mutex-protected in-memory Store. It is the default when no
// database DSN is configured.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	meta    map[string]Metadata
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{meta: make(map[string]Metadata)}
}

// Put appends entries in arrival order.
func (m *Memory) Put(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entries...)
	m.mu.Unlock()
	return nil
}

// PutMetadata upserts metadata keyed by metric and property name.
func (m *Memory) PutMetadata(_ context.Context, items []Metadata) error {
	m.mu.Lock()
	for _, it := range items {
		m.meta[it.Metric+"\x00"+it.Name] = it
	}
	m.mu.Unlock()
	return nil
}

// Series returns the stored readings for metric, oldest first. An empty
// metric returns everything.
func (m *Memory) Series(_ context.Context, metric string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if metric == "" || e.Metric == metric {
			out = append(out, e)
		}
	}
	if metric != "" && len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Metadata returns every retained triple sorted by metric then name.
func (m *Memory) Metadata(_ context.Context) ([]Metadata, error) {
	m.mu.RLock()
	out := make([]Metadata, 0, len(m.meta))
	for _, it := range m.meta {
		out = append(out, it)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
