package statline

import (
	"fmt"
	"strconv"
	"time"
)

// finalizeSlack is the heuristic threshold below which the writer closes
// the current payload early instead of risking a partial-copy on the next
// reading.
const finalizeSlack = 150

// ReadingEncoder renders readings in one endpoint's wire format. Open and
// Close frame a payload; Separator joins consecutive readings.
type ReadingEncoder interface {
	Open() []byte
	Close() []byte
	Separator() []byte
	AppendReading(dst []byte, r Reading, ts *TimestampCache) ([]byte, error)
}

// TimestampCache memoizes the millisecond rendering of the most recently
// seen instant. Snapshot serialization stamps every reading in a window
// with the same time, so the cache hits almost always.
type TimestampCache struct {
	lastMilli int64
	buf       []byte
}

// AppendMillis appends the 13-digit millisecond form of t to dst.
func (tc *TimestampCache) AppendMillis(dst []byte, t time.Time) []byte {
	ms := t.UnixMilli()
	if ms != tc.lastMilli || len(tc.buf) == 0 {
		tc.buf = strconv.AppendInt(tc.buf[:0], ms, 10)
		tc.lastMilli = ms
	}
	return append(dst, tc.buf...)
}

// appendFloat appends v in shortest round-trip decimal form.
func appendFloat(dst []byte, v float64) []byte {
	return strconv.AppendFloat(dst, v, 'g', -1, 64)
}

// appendJSONString appends s as a quoted JSON string. Metric names and tag
// values are validated against a safe character set at registration, so
// the escape path is effectively dead weight kept for robustness.
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c < 0x20:
			dst = append(dst, []byte(fmt.Sprintf(`\u%04x`, c))...)
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

// Writer serializes readings into pooled payloads, chunking across payload
// boundaries. It is used from a single goroutine per batch.
type Writer struct {
	queue   *PayloadQueue
	enc     ReadingEncoder
	cur     *Payload
	tsCache TimestampCache
	onError func(error)
	onDrop  func(int)
	maxSize int
}

// NewWriter builds a writer over q using enc for the wire format. onError
// receives per-reading serialization failures; onDrop receives payload
// drop counts caused by queue pressure.
func NewWriter(q *PayloadQueue, enc ReadingEncoder, onError func(error), onDrop func(int)) *Writer {
	if onError == nil {
		onError = func(error) {}
	}
	if onDrop == nil {
		onDrop = func(int) {}
	}
	return &Writer{
		queue:   q,
		enc:     enc,
		onError: onError,
		onDrop:  onDrop,
		maxSize: q.PayloadSize(),
	}
}

func (w *Writer) acquire() *Payload {
	p, dropped := w.queue.GetFree()
	if dropped > 0 {
		w.onDrop(dropped)
	}
	return p
}

// Add serializes one reading into the current payload, rotating to a fresh
// payload when the current one would overflow. A reading that fails
// validation or encoding is dropped; the rest of the batch proceeds.
func (w *Writer) Add(r Reading) {
	if !validateReadingTime(r.Time) {
		w.onError(fmt.Errorf("reading %q at %s: %w", r.FullName(), r.Time.UTC().Format(time.RFC3339Nano), ErrTimestampOutOfRange))
		return
	}
	if w.cur == nil {
		if w.cur = w.acquire(); w.cur == nil {
			return
		}
	}

	p := w.cur
	start := len(p.Data)
	b := p.Data
	sepLen := 0
	if start == 0 {
		b = append(b, w.enc.Open()...)
	} else {
		sep := w.enc.Separator()
		sepLen = len(sep)
		b = append(b, sep...)
	}
	b, err := w.enc.AppendReading(b, r, &w.tsCache)
	if err != nil {
		w.onError(fmt.Errorf("encode reading %q: %w", r.FullName(), err))
		return
	}

	if len(b)+len(w.enc.Close()) > w.maxSize {
		if start == 0 {
			w.onError(fmt.Errorf("reading %q (%d bytes): %w", r.FullName(), len(b), ErrReadingTooLarge))
			return
		}
		// Relocate the partial write into a fresh payload, then finalize
		// the full one.
		fresh := w.acquire()
		if fresh != nil {
			fresh.Data = append(fresh.Data, w.enc.Open()...)
			fresh.Data = append(fresh.Data, b[start+sepLen:]...)
			fresh.MetricsCount = 1
		}
		w.finalize(p)
		w.cur = fresh
		return
	}

	p.Data = b
	p.MetricsCount++
	if w.maxSize-len(p.Data) < finalizeSlack {
		w.finalize(p)
		w.cur = nil
	}
}

func (w *Writer) finalize(p *Payload) {
	p.Data = append(p.Data, w.enc.Close()...)
	w.queue.AddPending(p)
}

// Finish flushes the current payload to the pending queue, or releases it
// if nothing was written.
func (w *Writer) Finish() {
	if w.cur == nil {
		return
	}
	if w.cur.MetricsCount > 0 {
		w.finalize(w.cur)
	} else {
		w.queue.Release(w.cur)
	}
	w.cur = nil
}
