package statline

import (
	"time"

	"go.uber.org/zap"
)

// Endpoint pairs a named destination with its handler. The name appears in
// send reports and on the self-metrics, so it must satisfy the tag value
// character set.
type Endpoint struct {
	Name    string
	Handler Handler
}

const (
	defaultSnapshotInterval = 30 * time.Second
	defaultMetadataInterval = 5 * time.Minute
	defaultMaxPayloadSize   = 8000
	defaultMaxPayloadCount  = 240
	defaultMaxRetries       = 3
	defaultSendTimeout      = 10 * time.Second
	retryDelayBase          = 2 * time.Second
)

// Options configures a Collector. The zero value of every field has a
// usable default; Endpoints may be empty (metrics accumulate and are
// discarded on snapshot).
type Options struct {
	Endpoints []Endpoint
	// DefaultTags are merged into every metric's tag set at attach time.
	DefaultTags TagSet
	// NamePrefix is prepended to every metric name.
	NamePrefix string

	SnapshotInterval time.Duration
	MetadataInterval time.Duration

	// ErrorOnQueueFull surfaces payload drops through OnError instead of
	// only counting them.
	ErrorOnQueueFull bool
	// TagNameTransformer maps declared tag keys to wire keys. Defaults to
	// DefaultNameTransformer.
	TagNameTransformer NameTransformer

	// OnError receives registration-asynchronous failures: serialization
	// errors, fatal transport errors, queue drops (opt-in), shutdown
	// aborts. Panics in the callback are swallowed.
	OnError func(error)
	// AfterSend is invoked once per send attempt. Panics are swallowed.
	AfterSend func(SendReport)

	MaxPayloadSize  int
	MaxPayloadCount int
	// MaxRetries bounds send attempts per payload.
	MaxRetries int
	// RetryDelay maps the count of consecutive failed flushes to the
	// backoff before the endpoint sends again. Defaults to exponential
	// growth from 2s, capped at SnapshotInterval.
	RetryDelay func(consecutiveFailures int) time.Duration

	// SendTimeout bounds each network send.
	SendTimeout time.Duration
	// ShutdownGrace bounds how long Shutdown waits for in-flight sends.
	// Defaults to SnapshotInterval.
	ShutdownGrace time.Duration

	Logger *zap.Logger
}

func (o *Options) withDefaults() {
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = defaultSnapshotInterval
	}
	if o.MetadataInterval <= 0 {
		o.MetadataInterval = defaultMetadataInterval
	}
	if o.MaxPayloadSize <= 0 {
		o.MaxPayloadSize = defaultMaxPayloadSize
	}
	if o.MaxPayloadCount <= 0 {
		o.MaxPayloadCount = defaultMaxPayloadCount
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = o.SnapshotInterval
	}
	if o.TagNameTransformer == nil {
		o.TagNameTransformer = DefaultNameTransformer
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.RetryDelay == nil {
		maxDelay := o.SnapshotInterval
		o.RetryDelay = func(consecutiveFailures int) time.Duration {
			d := retryDelayBase
			for i := 1; i < consecutiveFailures && d < maxDelay; i++ {
				d *= 2
			}
			if d > maxDelay {
				d = maxDelay
			}
			return d
		}
	}
}
