package statline

import (
	"context"
	"net/http"
)

// signalfxEncoder frames readings of a single metric type as one group of
// a SignalFx datapoint payload, e.g. {"gauge":[...]}.
type signalfxEncoder struct {
	group MetricType
}

func (e signalfxEncoder) Open() []byte    { return []byte(`{"` + string(e.group) + `":[`) }
func (signalfxEncoder) Close() []byte     { return []byte(`]}`) }
func (signalfxEncoder) Separator() []byte { return []byte{','} }

func (signalfxEncoder) AppendReading(dst []byte, r Reading, ts *TimestampCache) ([]byte, error) {
	dst = append(dst, `{"metric":`...)
	dst = appendJSONString(dst, r.FullName())
	dst = append(dst, `,"value":`...)
	dst = appendFloat(dst, r.Value)
	dst = append(dst, `,"timestamp":`...)
	dst = ts.AppendMillis(dst, r.Time)
	dst = append(dst, `,"dimensions":`...)
	dst = append(dst, r.Tags.JSON...)
	return append(dst, '}'), nil
}

// signalfxBatch routes each reading to the writer of its type group, so a
// payload never mixes gauges with counters.
type signalfxBatch struct {
	gauge      *Writer
	counter    *Writer
	cumulative *Writer
}

func (b *signalfxBatch) Add(r Reading) {
	switch r.Type {
	case TypeCounter:
		b.counter.Add(r)
	case TypeCumulativeCounter:
		b.cumulative.Add(r)
	default:
		b.gauge.Add(r)
	}
}

func (b *signalfxBatch) Finish() {
	b.gauge.Finish()
	b.counter.Finish()
	b.cumulative.Finish()
}

// SignalFxHandler ships readings to the SignalFx v2 datapoint API,
// authenticating with the X-SF-TOKEN header.
type SignalFxHandler struct {
	*httpHandler
}

// NewSignalFxHandler builds a handler posting to base (typically
// https://ingest.signalfx.com) with the given access token.
func NewSignalFxHandler(base, token string, client *http.Client) (*SignalFxHandler, error) {
	hh, err := newHTTPHandler("signalfx", base, client)
	if err != nil {
		return nil, err
	}
	if token != "" {
		hh.headers.Set("X-SF-TOKEN", token)
	}
	return &SignalFxHandler{httpHandler: hh}, nil
}

// Init implements Handler.
func (h *SignalFxHandler) Init(cfg HandlerConfig) error {
	h.init(cfg)
	return nil
}

// BeginBatch implements Handler.
func (h *SignalFxHandler) BeginBatch() BatchWriter {
	return &signalfxBatch{
		gauge:      NewWriter(h.queue, signalfxEncoder{group: TypeGauge}, h.cfg.OnError, h.cfg.OnDrop),
		counter:    NewWriter(h.queue, signalfxEncoder{group: TypeCounter}, h.cfg.OnError, h.cfg.OnDrop),
		cumulative: NewWriter(h.queue, signalfxEncoder{group: TypeCumulativeCounter}, h.cfg.OnError, h.cfg.OnDrop),
	}
}

// Flush implements Handler.
func (h *SignalFxHandler) Flush(ctx context.Context, report func(SendReport)) error {
	return h.flushPayloads(ctx, report, func(ctx context.Context, p *Payload) error {
		return h.post(ctx, "/v2/datapoint", p.Data)
	})
}

// SendMetadata implements Handler; the datapoint API has no metadata
// surface.
func (h *SignalFxHandler) SendMetadata(context.Context, []MetricDefinition) error {
	return nil
}
