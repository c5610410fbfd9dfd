package statline

import (
	"sync"
	"sync/atomic"
)

// payloadSlack is extra buffer capacity beyond the configured payload size
// so a reading can be appended in place before the writer decides whether
// it overflowed.
const payloadSlack = 512

// Payload is a reusable byte buffer holding one framed batch of readings.
// A payload is owned by exactly one of: the free pool, a writer, the
// pending queue, or the retry queue.
type Payload struct {
	Data         []byte
	MetricsCount int
	SendAttempts int
}

func newPayload(size int) *Payload {
	return &Payload{Data: make([]byte, 0, size+payloadSlack)}
}

func (p *Payload) reset() {
	p.Data = p.Data[:0]
	p.MetricsCount = 0
	p.SendAttempts = 0
}

// PayloadQueue manages the free, pending, and retry payload lists for one
// endpoint. It is bounded by payload count: when the bound would be
// exceeded the oldest queued payload is dropped and its buffer reused.
type PayloadQueue struct {
	mu        sync.Mutex
	free      []*Payload
	pending   []*Payload
	retry     []*Payload
	allocated int

	payloadSize int
	maxCount    int

	dropped atomic.Int64
}

// NewPayloadQueue returns a queue that allocates payloads of payloadSize
// bytes, at most maxCount of them.
func NewPayloadQueue(payloadSize, maxCount int) *PayloadQueue {
	if payloadSize < 256 {
		payloadSize = 256
	}
	if maxCount < 1 {
		maxCount = 1
	}
	return &PayloadQueue{payloadSize: payloadSize, maxCount: maxCount}
}

// PayloadSize returns the configured per-payload byte budget.
func (q *PayloadQueue) PayloadSize() int { return q.payloadSize }

// GetFree returns a payload ready for writing, never blocking. When the
// allocation bound is reached it evicts the oldest queued payload (retry
// before pending) and reuses its buffer; the number of evicted payloads is
// returned alongside.
func (q *PayloadQueue) GetFree() (*Payload, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.free); n > 0 {
		p := q.free[n-1]
		q.free = q.free[:n-1]
		return p, 0
	}
	if q.allocated < q.maxCount {
		q.allocated++
		return newPayload(q.payloadSize), 0
	}

	var p *Payload
	switch {
	case len(q.retry) > 0:
		p = q.retry[0]
		q.retry = q.retry[1:]
	case len(q.pending) > 0:
		p = q.pending[0]
		q.pending = q.pending[1:]
	default:
		// Every payload is checked out by a writer or an in-flight send.
		// The bound is absolute, so the incoming write is shed instead.
		q.dropped.Add(1)
		return nil, 1
	}
	q.dropped.Add(1)
	p.reset()
	return p, 1
}

// AddPending appends a finalized payload to the pending FIFO.
func (q *PayloadQueue) AddPending(p *Payload) {
	q.mu.Lock()
	q.pending = append(q.pending, p)
	q.mu.Unlock()
}

// MergeRetry prepends the retry list onto pending so the oldest payloads
// are sent first. Called at the start of each flush.
func (q *PayloadQueue) MergeRetry() {
	q.mu.Lock()
	if len(q.retry) > 0 {
		q.pending = append(q.retry, q.pending...)
		q.retry = nil
	}
	q.mu.Unlock()
}

// TakeForFlush removes and returns the entire pending list.
func (q *PayloadQueue) TakeForFlush() []*Payload {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	return batch
}

// Retry records a failed send attempt. The payload goes to the retry tail
// unless its attempt budget is exhausted, in which case it is dropped and
// released. Reports whether the payload was dropped.
func (q *PayloadQueue) Retry(p *Payload, maxRetries int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.SendAttempts++
	if p.SendAttempts >= maxRetries {
		q.dropped.Add(1)
		p.reset()
		q.free = append(q.free, p)
		return true
	}
	q.retry = append(q.retry, p)
	return false
}

// Requeue returns an unattempted payload to the retry tail without
// touching its attempt count. Used for the remainder of a batch after a
// transient failure.
func (q *PayloadQueue) Requeue(p *Payload) {
	q.mu.Lock()
	q.retry = append(q.retry, p)
	q.mu.Unlock()
}

// Release returns a sent or abandoned payload to the free pool.
func (q *PayloadQueue) Release(p *Payload) {
	q.mu.Lock()
	p.reset()
	q.free = append(q.free, p)
	q.mu.Unlock()
}

// DropAll releases every queued payload and returns how many were
// abandoned. Used during shutdown after the grace period.
func (q *PayloadQueue) DropAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending) + len(q.retry)
	for _, p := range q.pending {
		p.reset()
		q.free = append(q.free, p)
	}
	for _, p := range q.retry {
		p.reset()
		q.free = append(q.free, p)
	}
	q.pending, q.retry = nil, nil
	q.dropped.Add(int64(n))
	return n
}

// QueuedCount returns the number of payloads waiting in pending plus retry.
func (q *PayloadQueue) QueuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.retry)
}

// AllocatedCount returns how many payload buffers exist.
func (q *PayloadQueue) AllocatedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.allocated
}

// TakeDropped returns the number of payloads dropped since the previous
// call and resets the counter.
func (q *PayloadQueue) TakeDropped() int {
	return int(q.dropped.Swap(0))
}
