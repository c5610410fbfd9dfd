package statline

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// statsdEncoder renders readings as DogStatsD-style lines:
// name:value|c|#k:v,k:v — one line per reading, newline separated.
type statsdEncoder struct{}

func (statsdEncoder) Open() []byte      { return nil }
func (statsdEncoder) Close() []byte     { return nil }
func (statsdEncoder) Separator() []byte { return []byte{'\n'} }

func (statsdEncoder) AppendReading(dst []byte, r Reading, _ *TimestampCache) ([]byte, error) {
	dst = append(dst, r.Name...)
	dst = append(dst, r.Suffix...)
	dst = append(dst, ':')
	dst = appendFloat(dst, r.Value)
	if r.Type == TypeCounter {
		dst = append(dst, "|c"...)
	} else {
		// Gauges and cumulative counters both travel as gauges: the line
		// protocol has no cumulative kind.
		dst = append(dst, "|g"...)
	}
	if r.Tags.Line != "" {
		dst = append(dst, "|#"...)
		dst = append(dst, r.Tags.Line...)
	}
	return dst, nil
}

// StatsdHandler ships readings over UDP, one datagram per reading. The
// payload size bounds the datagram size.
type StatsdHandler struct {
	addr string
	cfg  HandlerConfig

	mu    sync.Mutex
	conn  net.Conn
	queue *PayloadQueue
}

// NewStatsdHandler builds a handler sending to addr (host:port).
func NewStatsdHandler(addr string) *StatsdHandler {
	return &StatsdHandler{addr: addr}
}

// Init implements Handler.
func (h *StatsdHandler) Init(cfg HandlerConfig) error {
	h.cfg = cfg
	h.queue = NewPayloadQueue(cfg.MaxPayloadSize, cfg.MaxPayloadCount)
	return nil
}

// Queue implements Handler.
func (h *StatsdHandler) Queue() *PayloadQueue { return h.queue }

// BeginBatch implements Handler.
func (h *StatsdHandler) BeginBatch() BatchWriter {
	return NewWriter(h.queue, statsdEncoder{}, h.cfg.OnError, h.cfg.OnDrop)
}

func (h *StatsdHandler) dial() (net.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		return h.conn, nil
	}
	conn, err := net.Dial("udp", h.addr)
	if err != nil {
		return nil, err
	}
	h.conn = conn
	return conn, nil
}

func (h *StatsdHandler) dropConn() {
	h.mu.Lock()
	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
	}
	h.mu.Unlock()
}

// Flush implements Handler: each line of each payload goes out as its own
// datagram. Write failures are transient; the connection is re-dialed on
// the next cycle.
func (h *StatsdHandler) Flush(ctx context.Context, report func(SendReport)) error {
	h.queue.MergeRetry()
	batch := h.queue.TakeForFlush()

	for i, p := range batch {
		start := time.Now()
		err := h.sendPayload(ctx, p)
		report(SendReport{
			Duration:       time.Since(start),
			BytesWritten:   len(p.Data),
			MetricsWritten: p.MetricsCount,
			Err:            err,
		})
		if err == nil {
			h.queue.Release(p)
			continue
		}
		h.dropConn()
		if dropped := h.queue.Retry(p, h.cfg.MaxRetries); dropped {
			h.cfg.OnDrop(1)
			h.cfg.OnError(fmt.Errorf("statsd: payload dropped after %d attempts: %w", p.SendAttempts, err))
		}
		for _, rest := range batch[i+1:] {
			h.queue.Requeue(rest)
		}
		return err
	}
	return nil
}

func (h *StatsdHandler) sendPayload(ctx context.Context, p *Payload) error {
	conn, err := h.dial()
	if err != nil {
		return &TransportError{Endpoint: "statsd", Err: err, Transient: true}
	}
	if h.cfg.Timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.Timeout))
	}
	for _, line := range bytes.Split(p.Data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return &TransportError{Endpoint: "statsd", Err: err, Transient: true}
		}
		if _, err := conn.Write(line); err != nil {
			return &TransportError{Endpoint: "statsd", Err: err, Transient: true}
		}
	}
	return nil
}

// SendMetadata implements Handler; the line protocol has no metadata.
func (h *StatsdHandler) SendMetadata(context.Context, []MetricDefinition) error {
	return nil
}

// Close implements Handler.
func (h *StatsdHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		err := h.conn.Close()
		h.conn = nil
		return err
	}
	return nil
}
