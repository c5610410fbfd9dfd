package statline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// bosunEncoder frames readings as the flat JSON array accepted by Bosun's
// /api/put.
type bosunEncoder struct{}

func (bosunEncoder) Open() []byte      { return []byte{'['} }
func (bosunEncoder) Close() []byte     { return []byte{']'} }
func (bosunEncoder) Separator() []byte { return []byte{','} }

func (bosunEncoder) AppendReading(dst []byte, r Reading, ts *TimestampCache) ([]byte, error) {
	dst = append(dst, `{"metric":`...)
	dst = appendJSONString(dst, r.FullName())
	dst = append(dst, `,"value":`...)
	dst = appendFloat(dst, r.Value)
	dst = append(dst, `,"tags":`...)
	dst = append(dst, r.Tags.JSON...)
	dst = append(dst, `,"timestamp":`...)
	dst = ts.AppendMillis(dst, r.Time)
	return append(dst, '}'), nil
}

// BosunHandler ships readings to a Bosun server: datapoints to /api/put,
// metadata to /api/metadata/put.
type BosunHandler struct {
	*httpHandler
}

// NewBosunHandler builds a handler for the Bosun server at base (host:port
// or URL). A nil client uses http.DefaultClient semantics.
func NewBosunHandler(base string, client *http.Client) (*BosunHandler, error) {
	hh, err := newHTTPHandler("bosun", base, client)
	if err != nil {
		return nil, err
	}
	return &BosunHandler{httpHandler: hh}, nil
}

// Init implements Handler.
func (h *BosunHandler) Init(cfg HandlerConfig) error {
	h.init(cfg)
	return nil
}

// BeginBatch implements Handler.
func (h *BosunHandler) BeginBatch() BatchWriter {
	return NewWriter(h.queue, bosunEncoder{}, h.cfg.OnError, h.cfg.OnDrop)
}

// Flush implements Handler.
func (h *BosunHandler) Flush(ctx context.Context, report func(SendReport)) error {
	return h.flushPayloads(ctx, report, func(ctx context.Context, p *Payload) error {
		return h.post(ctx, "/api/put", p.Data)
	})
}

type bosunMetadata struct {
	Metric string `json:"Metric"`
	Name   string `json:"Name"`
	Value  string `json:"Value"`
}

// SendMetadata posts one rate/unit/desc triple per definition.
func (h *BosunHandler) SendMetadata(ctx context.Context, defs []MetricDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	entries := make([]bosunMetadata, 0, len(defs)*3)
	for _, d := range defs {
		entries = append(entries,
			bosunMetadata{Metric: d.Name, Name: "rate", Value: string(d.Rate)},
			bosunMetadata{Metric: d.Name, Name: "unit", Value: d.Unit},
			bosunMetadata{Metric: d.Name, Name: "desc", Value: d.Description},
		)
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return h.post(ctx, "/api/metadata/put", body)
}
