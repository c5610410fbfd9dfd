package statline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/emberfield/statline/pkg/observer"
)

const (
	collectorRunning int32 = iota
	collectorDraining
	collectorClosed
)

type metricKey struct {
	name string
	tags string
}

// Collector owns the metric registry and the background snapshot,
// metadata, and flush machinery. Construct with New, release with
// Shutdown.
type Collector struct {
	opts Options
	log  *zap.Logger

	mu      sync.RWMutex
	metrics []Metric
	byKey   map[metricKey]Metric
	defs    map[string]MetricDefinition

	endpoints []*endpointState
	reports   *observer.Subject[SendReport]
	errs      *observer.Subject[error]

	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	done    chan struct{}
	force   chan chan struct{}
	flushWG sync.WaitGroup
}

// New validates opts, initializes every endpoint handler, and starts the
// snapshot and metadata loops.
func New(opts Options) (*Collector, error) {
	opts.withDefaults()

	c := &Collector{
		opts:    opts,
		log:     opts.Logger,
		byKey:   make(map[metricKey]Metric),
		defs:    make(map[string]MetricDefinition),
		reports: observer.NewSubject[SendReport](),
		errs:    observer.NewSubject[error](),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		force:   make(chan chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	onObserverErr := func(err error) {
		c.log.Debug("observer failed", zap.Error(err))
	}
	c.reports.SetErrorHandler(onObserverErr)
	c.errs.SetErrorHandler(onObserverErr)

	// User callbacks are untrusted: recover wraps both subjects.
	if fn := opts.AfterSend; fn != nil {
		c.reports.Attach(observer.ObserverFunc[SendReport](func(_ context.Context, rep SendReport) error {
			defer func() { _ = recover() }()
			fn(rep)
			return nil
		}))
	}
	if fn := opts.OnError; fn != nil {
		c.errs.Attach(observer.ObserverFunc[error](func(_ context.Context, err error) error {
			defer func() { _ = recover() }()
			fn(err)
			return nil
		}))
	}
	c.errs.Attach(observer.ObserverFunc[error](func(_ context.Context, err error) error {
		c.log.Debug("collector error", zap.Error(err))
		return nil
	}))

	for _, e := range opts.Endpoints {
		if e.Handler == nil {
			return nil, fmt.Errorf("endpoint %q has no handler", e.Name)
		}
		ep := &endpointState{
			name:    e.Name,
			handler: e.Handler,
			log:     c.log,
			reports: c.reports,
		}
		cfg := HandlerConfig{
			MaxPayloadSize:  opts.MaxPayloadSize,
			MaxPayloadCount: opts.MaxPayloadCount,
			MaxRetries:      opts.MaxRetries,
			Timeout:         opts.SendTimeout,
			Logger:          c.log,
			OnError: func(err error) {
				c.errs.Publish(context.Background(), err)
			},
			OnDrop: func(n int) {
				ep.countDrop(n)
				if opts.ErrorOnQueueFull {
					c.errs.Publish(context.Background(), fmt.Errorf("endpoint %s: %w", ep.name, ErrQueueFull))
				}
			},
		}
		if err := e.Handler.Init(cfg); err != nil {
			return nil, fmt.Errorf("init endpoint %q: %w", e.Name, err)
		}
		c.endpoints = append(c.endpoints, ep)
	}

	// Self-metric: payloads dropped per endpoint. Endpoint names outside
	// the tag charset simply go uncounted.
	for _, ep := range c.endpoints {
		dropped, err := c.GetCounter("statline.dropped_payloads", "payloads",
			"Payloads dropped due to queue pressure, retry exhaustion, or shutdown.",
			Tags("endpoint", ep.name))
		if err == nil {
			ep.dropped = dropped
		}
	}

	go c.run()
	return c, nil
}

func (c *Collector) run() {
	defer close(c.done)
	snap := time.NewTicker(c.opts.SnapshotInterval)
	defer snap.Stop()
	meta := time.NewTicker(c.opts.MetadataInterval)
	defer meta.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-snap.C:
			c.snapshot(time.Now().UTC())
		case <-meta.C:
			c.metadata()
		case ack := <-c.force:
			c.snapshot(time.Now().UTC())
			close(ack)
		}
	}
}

// snapshot walks the registry in registration order, swaps every metric's
// accumulator, serializes one batch per endpoint, and triggers the flushes.
func (c *Collector) snapshot(now time.Time) {
	c.mu.RLock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.mu.RUnlock()

	for _, m := range metrics {
		m.preSerialize()
	}
	for _, ep := range c.endpoints {
		bw := ep.handler.BeginBatch()
		for _, m := range metrics {
			m.serialize(bw, now)
		}
		bw.Finish()
		ep.triggerFlush(c.ctx, &c.flushWG, c.opts.RetryDelay)
	}
}

func (c *Collector) metadata() {
	defs := c.Definitions()
	if len(defs) == 0 {
		return
	}
	for _, ep := range c.endpoints {
		ep := ep
		c.flushWG.Add(1)
		go func() {
			defer c.flushWG.Done()
			if err := ep.handler.SendMetadata(c.ctx, defs); err != nil {
				c.log.Warn("metadata send failed", zap.String("endpoint", ep.name), zap.Error(err))
			}
		}()
	}
}

// Definitions returns the registered metric definitions sorted by name.
func (c *Collector) Definitions() []MetricDefinition {
	c.mu.RLock()
	defs := make([]MetricDefinition, 0, len(c.defs))
	for _, d := range c.defs {
		defs = append(defs, d)
	}
	c.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// SnapshotNow forces one snapshot and flush cycle on the collector
// goroutine and waits for the serialization (not the sends) to complete.
func (c *Collector) SnapshotNow(ctx context.Context) error {
	if c.state.Load() != collectorRunning {
		return ErrClosed
	}
	ack := make(chan struct{})
	select {
	case c.force <- ack:
	case <-c.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register is the single registration path shared by GetMetric and
// BindMetric.
func (c *Collector) register(name, unit, description string, m Metric, reuse bool) (Metric, error) {
	if c.state.Load() != collectorRunning {
		return nil, ErrClosed
	}
	full := c.opts.NamePrefix + name
	if !validMetricName(full) {
		return nil, fmt.Errorf("metric %q: %w", full, ErrInvalidName)
	}

	ser, canonical, err := canonicalizeTags(m.TagValues(), c.opts.DefaultTags, c.opts.TagNameTransformer)
	if err != nil {
		return nil, fmt.Errorf("metric %q: %w", full, err)
	}

	def := MetricDefinition{
		Name:        full,
		Unit:        unit,
		Description: description,
		Type:        m.metricType(),
		Rate:        m.rateKind(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.defs[full]; ok && existing != def {
		return nil, fmt.Errorf("metric %q: %w", full, ErrInconsistentMetadata)
	}
	key := metricKey{name: full, tags: canonical}
	if existing, ok := c.byKey[key]; ok {
		if !reuse {
			return nil, fmt.Errorf("metric %q: %w", full, ErrDuplicateMetric)
		}
		return existing, nil
	}
	if err := m.attach(full, ser, &c.state); err != nil {
		return nil, fmt.Errorf("metric %q: %w", full, err)
	}
	c.byKey[key] = m
	c.metrics = append(c.metrics, m)
	c.defs[full] = def
	return m, nil
}

// GetMetric registers the metric produced by factory, or returns the
// already-registered instance for the same name and tag set. A key
// occupied by a different concrete type fails with ErrTypeMismatch.
func GetMetric[M Metric](c *Collector, name, unit, description string, factory func() M) (M, error) {
	var zero M
	got, err := c.register(name, unit, description, factory(), true)
	if err != nil {
		return zero, err
	}
	m, ok := got.(M)
	if !ok {
		return zero, fmt.Errorf("metric %q: have %T: %w", name, got, ErrTypeMismatch)
	}
	return m, nil
}

// BindMetric attaches a caller-constructed metric. Unlike GetMetric it is
// not idempotent: an occupied key fails with ErrDuplicateMetric.
func (c *Collector) BindMetric(name, unit, description string, m Metric) error {
	_, err := c.register(name, unit, description, m, false)
	return err
}

// GetCounter registers (or returns) a Counter.
func (c *Collector) GetCounter(name, unit, description string, tags TagSet) (*Counter, error) {
	return GetMetric(c, name, unit, description, func() *Counter { return NewCounter(tags) })
}

// GetCumulativeCounter registers (or returns) a CumulativeCounter.
func (c *Collector) GetCumulativeCounter(name, unit, description string, tags TagSet) (*CumulativeCounter, error) {
	return GetMetric(c, name, unit, description, func() *CumulativeCounter { return NewCumulativeCounter(tags) })
}

// GetSnapshotCounter registers (or returns) a SnapshotCounter.
func (c *Collector) GetSnapshotCounter(name, unit, description string, tags TagSet, produce func() (int64, bool)) (*SnapshotCounter, error) {
	return GetMetric(c, name, unit, description, func() *SnapshotCounter { return NewSnapshotCounter(tags, produce) })
}

// GetSamplingGauge registers (or returns) a SamplingGauge.
func (c *Collector) GetSamplingGauge(name, unit, description string, tags TagSet) (*SamplingGauge, error) {
	return GetMetric(c, name, unit, description, func() *SamplingGauge { return NewSamplingGauge(tags) })
}

// GetEventGauge registers (or returns) an EventGauge.
func (c *Collector) GetEventGauge(name, unit, description string, tags TagSet) (*EventGauge, error) {
	return GetMetric(c, name, unit, description, func() *EventGauge { return NewEventGauge(tags) })
}

// GetAggregateGauge registers (or returns) an AggregateGauge.
func (c *Collector) GetAggregateGauge(name, unit, description string, tags TagSet, aggregates ...Aggregate) (*AggregateGauge, error) {
	return GetMetric(c, name, unit, description, func() *AggregateGauge { return NewAggregateGauge(tags, aggregates...) })
}

// GetSnapshotGauge registers (or returns) a SnapshotGauge.
func (c *Collector) GetSnapshotGauge(name, unit, description string, tags TagSet, produce func() (float64, bool)) (*SnapshotGauge, error) {
	return GetMetric(c, name, unit, description, func() *SnapshotGauge { return NewSnapshotGauge(tags, produce) })
}

// Shutdown stops the loops, performs one final best-effort snapshot and
// flush bounded by ShutdownGrace, and closes the handlers. Idempotent.
func (c *Collector) Shutdown(ctx context.Context) error {
	if !c.state.CompareAndSwap(collectorRunning, collectorDraining) {
		return nil
	}
	close(c.stop)
	<-c.done

	grace, cancel := context.WithTimeout(ctx, c.opts.ShutdownGrace)
	defer cancel()

	// The loop goroutine is gone, so serialization is safe here.
	now := time.Now().UTC()
	c.mu.RLock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.mu.RUnlock()
	for _, m := range metrics {
		m.preSerialize()
	}
	for _, ep := range c.endpoints {
		bw := ep.handler.BeginBatch()
		for _, m := range metrics {
			m.serialize(bw, now)
		}
		bw.Finish()
	}

	// Wait out in-flight flushes before the final pass.
	flushed := make(chan struct{})
	go func() {
		c.flushWG.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-grace.Done():
		c.errs.Publish(context.Background(), fmt.Errorf("in-flight sends: %w", ErrShutdownAborted))
	}

	for _, ep := range c.endpoints {
		ep.finalFlush(grace, c.errs)
	}

	c.cancel()
	var firstErr error
	for _, ep := range c.endpoints {
		if err := ep.handler.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close endpoint %s: %w", ep.name, err)
		}
	}
	c.state.Store(collectorClosed)
	return firstErr
}
