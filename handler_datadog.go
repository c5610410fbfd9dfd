package statline

import (
	"context"
	"net/http"
	"strconv"
)

// datadogEncoder frames readings as entries of a DataDog v1 series payload.
type datadogEncoder struct{}

func (datadogEncoder) Open() []byte      { return []byte(`{"series":[`) }
func (datadogEncoder) Close() []byte     { return []byte(`]}`) }
func (datadogEncoder) Separator() []byte { return []byte{','} }

func datadogType(t MetricType) string {
	if t == TypeGauge {
		return "gauge"
	}
	return "count"
}

func (datadogEncoder) AppendReading(dst []byte, r Reading, _ *TimestampCache) ([]byte, error) {
	dst = append(dst, `{"metric":`...)
	dst = appendJSONString(dst, r.FullName())
	dst = append(dst, `,"points":[[`...)
	dst = strconv.AppendInt(dst, r.Time.Unix(), 10)
	dst = append(dst, ',')
	dst = appendFloat(dst, r.Value)
	dst = append(dst, `]],"type":"`...)
	dst = append(dst, datadogType(r.Type)...)
	dst = append(dst, '"')
	if r.Tags.Host != "" {
		dst = append(dst, `,"host":`...)
		dst = appendJSONString(dst, r.Tags.Host)
	}
	dst = append(dst, `,"tags":`...)
	dst = append(dst, r.Tags.ListJSON...)
	return append(dst, '}'), nil
}

// DataDogHandler ships readings to the DataDog v1 series API.
type DataDogHandler struct {
	*httpHandler
}

// NewDataDogHandler builds a handler posting to base (typically
// https://api.datadoghq.com) with the given API key.
func NewDataDogHandler(base, apiKey string, client *http.Client) (*DataDogHandler, error) {
	hh, err := newHTTPHandler("datadog", base, client)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		hh.headers.Set("DD-API-KEY", apiKey)
	}
	return &DataDogHandler{httpHandler: hh}, nil
}

// Init implements Handler.
func (h *DataDogHandler) Init(cfg HandlerConfig) error {
	h.init(cfg)
	return nil
}

// BeginBatch implements Handler.
func (h *DataDogHandler) BeginBatch() BatchWriter {
	return NewWriter(h.queue, datadogEncoder{}, h.cfg.OnError, h.cfg.OnDrop)
}

// Flush implements Handler.
func (h *DataDogHandler) Flush(ctx context.Context, report func(SendReport)) error {
	return h.flushPayloads(ctx, report, func(ctx context.Context, p *Payload) error {
		return h.post(ctx, "/api/v1/series", p.Data)
	})
}

// SendMetadata implements Handler; the series API has no metadata surface.
func (h *DataDogHandler) SendMetadata(context.Context, []MetricDefinition) error {
	return nil
}
