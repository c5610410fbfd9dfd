package statline

import (
	"errors"
	"fmt"
)

var (
	// ErrInconsistentMetadata is returned when a metric name is re-registered
	// with a different unit, description, type, or rate kind.
	ErrInconsistentMetadata = errors.New("metric metadata differs from an earlier registration")
	// ErrTypeMismatch is returned when a metric key is already occupied by a
	// metric of a different type.
	ErrTypeMismatch = errors.New("metric already registered with a different type")
	// ErrDuplicateMetric is returned by BindMetric when the key is taken.
	ErrDuplicateMetric = errors.New("metric already registered under this key")
	// ErrTagConflict indicates a tag key that collides with a default tag or
	// with another tag on the same metric.
	ErrTagConflict = errors.New("duplicate tag key")
	// ErrInvalidTag indicates an empty tag key or value.
	ErrInvalidTag = errors.New("empty tag key or value")
	// ErrInvalidTagValue indicates a tag key or value with characters outside
	// the allowed set (letters, digits, '-', '_', '.', '/').
	ErrInvalidTagValue = errors.New("tag contains disallowed characters")
	// ErrInvalidName indicates a metric name with disallowed characters.
	ErrInvalidName = errors.New("metric name contains disallowed characters")
	// ErrTimestampOutOfRange is reported for readings dated outside the
	// supported window (years 2000 through 2250, UTC).
	ErrTimestampOutOfRange = errors.New("reading timestamp out of range")
	// ErrNotAttached is returned by record operations on a metric that was
	// never registered with a collector.
	ErrNotAttached = errors.New("metric is not attached to a collector")
	// ErrReadingTooLarge is reported when a single encoded reading does not
	// fit into an empty payload buffer.
	ErrReadingTooLarge = errors.New("encoded reading exceeds the payload size")
	// ErrQueueFull is reported when the payload queue had to drop a payload
	// to stay within its bound.
	ErrQueueFull = errors.New("payload queue is full")
	// ErrShutdownAborted is reported for payloads abandoned because the
	// shutdown grace period elapsed before they could be sent.
	ErrShutdownAborted = errors.New("shutdown aborted pending sends")
	// ErrClosed is returned for operations on a collector that has been
	// shut down.
	ErrClosed = errors.New("collector is closed")
)

// TransportError describes a failed send attempt against an endpoint.
// Transient errors are retried up to the configured attempt budget; fatal
// errors drop the payload.
type TransportError struct {
	Err        error
	Endpoint   string
	StatusCode int
	Transient  bool
}

func (e *TransportError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint %s: %s transport error: status %d", e.Endpoint, kind, e.StatusCode)
	}
	return fmt.Sprintf("endpoint %s: %s transport error: %v", e.Endpoint, kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Transient
}
