package statline

import (
	"context"
	"sort"
	"sync"
)

// LocalHandler keeps the most recent reading per series in memory. Useful
// for tests and for exposing current values inside the process.
type LocalHandler struct {
	mu       sync.RWMutex
	readings map[string]Reading
	defs     map[string]MetricDefinition
}

// NewLocalHandler returns an empty local sink.
func NewLocalHandler() *LocalHandler {
	return &LocalHandler{
		readings: make(map[string]Reading),
		defs:     make(map[string]MetricDefinition),
	}
}

// Init implements Handler.
func (h *LocalHandler) Init(HandlerConfig) error { return nil }

// Queue implements Handler; the local sink is queueless.
func (h *LocalHandler) Queue() *PayloadQueue { return nil }

type localBatch struct {
	h *LocalHandler
}

func (b localBatch) Add(r Reading) {
	if !validateReadingTime(r.Time) {
		return
	}
	b.h.mu.Lock()
	b.h.readings[r.FullName()+"|"+r.Tags.Line] = r
	b.h.mu.Unlock()
}

func (localBatch) Finish() {}

// BeginBatch implements Handler.
func (h *LocalHandler) BeginBatch() BatchWriter { return localBatch{h: h} }

// Flush implements Handler; there is nothing to ship.
func (h *LocalHandler) Flush(context.Context, func(SendReport)) error { return nil }

// SendMetadata implements Handler, deduplicating definitions by name.
func (h *LocalHandler) SendMetadata(_ context.Context, defs []MetricDefinition) error {
	h.mu.Lock()
	for _, d := range defs {
		h.defs[d.Name] = d
	}
	h.mu.Unlock()
	return nil
}

// Close implements Handler.
func (h *LocalHandler) Close() error { return nil }

// Get returns the latest reading for the full name (with suffix) and
// canonical tag line, if any.
func (h *LocalHandler) Get(fullName, tagLine string) (Reading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.readings[fullName+"|"+tagLine]
	return r, ok
}

// Readings returns every retained reading sorted by series key.
func (h *LocalHandler) Readings() []Reading {
	h.mu.RLock()
	keys := make([]string, 0, len(h.readings))
	for k := range h.readings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Reading, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.readings[k])
	}
	h.mu.RUnlock()
	return out
}

// Metadata returns the retained definitions sorted by name.
func (h *LocalHandler) Metadata() []MetricDefinition {
	h.mu.RLock()
	out := make([]MetricDefinition, 0, len(h.defs))
	for _, d := range h.defs {
		out = append(out, d)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
