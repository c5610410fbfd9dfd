package statline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SendReport describes one send attempt (or drop event) for an endpoint.
// It is delivered to the AfterSend callback.
type SendReport struct {
	Endpoint        string
	Duration        time.Duration
	BytesWritten    int
	MetricsWritten  int
	DroppedPayloads int
	Err             error
}

// HandlerConfig is passed to each handler once when its collector starts.
type HandlerConfig struct {
	MaxPayloadSize  int
	MaxPayloadCount int
	MaxRetries      int
	Timeout         time.Duration
	Logger          *zap.Logger
	// OnError receives serialization and fatal transport errors.
	OnError func(error)
	// OnDrop receives payload drop counts caused by queue pressure.
	OnDrop func(int)
}

// BatchWriter accepts the readings of one snapshot window and finalizes
// any partially filled payload on Finish.
type BatchWriter interface {
	ReadingSink
	Finish()
}

// Handler ships payloads to one destination. BeginBatch and Flush are
// never invoked concurrently with themselves; Flush owns the transport.
type Handler interface {
	// Init prepares the handler. Called exactly once, before any batch.
	Init(cfg HandlerConfig) error
	// BeginBatch returns the writer for one snapshot window.
	BeginBatch() BatchWriter
	// Flush drains the pending queue, reporting every send attempt. A
	// non-nil error signals a transient failure: undelivered payloads
	// were re-queued and the endpoint should back off.
	Flush(ctx context.Context, report func(SendReport)) error
	// SendMetadata ships the metric definitions, where the wire format
	// has a metadata surface.
	SendMetadata(ctx context.Context, defs []MetricDefinition) error
	// Queue exposes the payload queue, or nil for queueless handlers.
	Queue() *PayloadQueue
	// Close releases transport resources.
	Close() error
}
