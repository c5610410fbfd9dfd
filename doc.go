// Package statline is an in-process metrics client. Application code
// registers named, tagged counters and gauges and records values at high
// rates from many goroutines; a background collector periodically
// snapshots every metric, serializes the readings into pooled payload
// buffers, and ships them to one or more telemetry endpoints (Bosun,
// DataDog, SignalFx, statsd UDP, or an in-memory local sink).
//
// Typical use:
//
//	c, err := statline.New(statline.Options{
//		Endpoints:   []statline.Endpoint{{Name: "bosun", Handler: bosun}},
//		DefaultTags: statline.Tags("host", hostname),
//	})
//	...
//	reqs, err := c.GetCounter("http.requests", "requests", "Handled requests.",
//		statline.Tags("route", "/api"))
//	...
//	reqs.Increment()
//
// Record paths never block and never perform I/O; all network activity
// happens on collector-owned goroutines. Backpressure is bounded payload
// queues per endpoint: when a queue is full the oldest payloads are
// dropped and counted, producers are never stalled.
package statline
