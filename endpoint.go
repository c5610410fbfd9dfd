package statline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberfield/statline/pkg/observer"
)

// EndpointStatus is the flush-cycle state of one endpoint.
type EndpointStatus int32

const (
	EndpointIdle EndpointStatus = iota
	EndpointDraining
	EndpointSending
	EndpointBackoff
	EndpointClosed
)

func (s EndpointStatus) String() string {
	switch s {
	case EndpointIdle:
		return "idle"
	case EndpointDraining:
		return "draining"
	case EndpointSending:
		return "sending"
	case EndpointBackoff:
		return "backoff"
	case EndpointClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// endpointState is the collector-side runtime wrapper around a handler:
// one flush at a time, backoff bookkeeping, and report routing.
type endpointState struct {
	name    string
	handler Handler
	log     *zap.Logger

	reports *observer.Subject[SendReport]
	dropped *Counter

	mu          sync.Mutex
	status      EndpointStatus
	flushing    bool
	failures    int
	nextAttempt time.Time
}

// Status returns the endpoint's current flush-cycle state.
func (ep *endpointState) Status() EndpointStatus {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.status
}

func (ep *endpointState) report(rep SendReport) {
	rep.Endpoint = ep.name
	if q := ep.handler.Queue(); q != nil {
		rep.DroppedPayloads = q.TakeDropped()
	}
	ep.reports.Publish(context.Background(), rep)
}

// countDrop feeds the per-endpoint self-metric.
func (ep *endpointState) countDrop(n int) {
	if ep.dropped != nil {
		_ = ep.dropped.Add(int64(n))
	}
}

// triggerFlush starts a flush goroutine unless one is running or the
// endpoint is in backoff. wg tracks the goroutine for shutdown.
func (ep *endpointState) triggerFlush(ctx context.Context, wg *sync.WaitGroup, retryDelay func(int) time.Duration) {
	ep.mu.Lock()
	if ep.flushing || ep.status == EndpointClosed {
		ep.mu.Unlock()
		return
	}
	if !ep.nextAttempt.IsZero() && time.Now().Before(ep.nextAttempt) {
		ep.status = EndpointBackoff
		ep.mu.Unlock()
		return
	}
	ep.flushing = true
	ep.status = EndpointDraining
	ep.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ep.flushOnce(ctx, retryDelay)
	}()
}

func (ep *endpointState) flushOnce(ctx context.Context, retryDelay func(int) time.Duration) {
	ep.setStatus(EndpointSending)
	err := ep.handler.Flush(ctx, ep.report)

	ep.mu.Lock()
	ep.flushing = false
	if err != nil {
		ep.failures++
		delay := retryDelay(ep.failures)
		ep.nextAttempt = time.Now().Add(delay)
		ep.status = EndpointBackoff
		ep.mu.Unlock()
		ep.log.Warn("flush failed",
			zap.String("endpoint", ep.name),
			zap.Int("consecutive_failures", ep.failures),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		return
	}
	ep.failures = 0
	ep.nextAttempt = time.Time{}
	ep.status = EndpointIdle
	ep.mu.Unlock()
}

func (ep *endpointState) setStatus(s EndpointStatus) {
	ep.mu.Lock()
	ep.status = s
	ep.mu.Unlock()
}

// finalFlush runs one synchronous best-effort flush during shutdown, then
// abandons whatever is still queued.
func (ep *endpointState) finalFlush(ctx context.Context, errs *observer.Subject[error]) {
	ep.setStatus(EndpointDraining)
	if err := ep.handler.Flush(ctx, ep.report); err != nil {
		ep.log.Warn("final flush failed", zap.String("endpoint", ep.name), zap.Error(err))
	}
	if q := ep.handler.Queue(); q != nil {
		if n := q.DropAll(); n > 0 {
			ep.countDrop(n)
			errs.Publish(context.Background(), fmt.Errorf("endpoint %s: %d payloads abandoned: %w", ep.name, n, ErrShutdownAborted))
		}
	}
	ep.setStatus(EndpointClosed)
}
