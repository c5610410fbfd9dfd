package statline

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	gzipBufferPool = sync.Pool{
		New: func() any {
			return new(bytes.Buffer)
		},
	}
)

// normalizeBase ensures the address carries a scheme and no trailing slash.
func normalizeBase(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

// isTransientNetErr classifies connection-level failures worth retrying.
func isTransientNetErr(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryableStatus reports whether an HTTP status should be retried.
// Everything 5xx plus 429 is transient; other 4xx drop the payload.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// httpHandler is the shared transport core of the Bosun, DataDog, and
// SignalFx handlers: pooled gzip compression, per-request timeout, and
// transient/fatal classification.
type httpHandler struct {
	name    string
	baseURL *url.URL
	client  *http.Client
	headers http.Header

	cfg   HandlerConfig
	queue *PayloadQueue
}

func newHTTPHandler(name, base string, client *http.Client) (*httpHandler, error) {
	u, err := url.Parse(normalizeBase(base))
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &httpHandler{
		name:    name,
		baseURL: u,
		client:  client,
		headers: http.Header{},
	}, nil
}

func (h *httpHandler) init(cfg HandlerConfig) {
	h.cfg = cfg
	if cfg.Logger == nil {
		h.cfg.Logger = zap.NewNop()
	}
	h.queue = NewPayloadQueue(cfg.MaxPayloadSize, cfg.MaxPayloadCount)
}

func (h *httpHandler) Queue() *PayloadQueue { return h.queue }

func (h *httpHandler) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *httpHandler) endpointURL(path string) string {
	u := *h.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// post gzips body and sends it, classifying the outcome.
func (h *httpHandler) post(ctx context.Context, path string, body []byte) error {
	gz, err := gzipBytes(body)
	if err != nil {
		return &TransportError{Endpoint: h.name, Err: err}
	}
	defer gz.release()

	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpointURL(path), bytes.NewReader(gz.bytes()))
	if err != nil {
		return &TransportError{Endpoint: h.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	for k, vs := range h.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return &TransportError{Endpoint: h.name, Err: err, Transient: isTransientNetErr(err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Endpoint:   h.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server status: %s", resp.Status),
			Transient:  retryableStatus(resp.StatusCode),
		}
	}
	return nil
}

// flushPayloads drains the queue through send, one attempt per payload per
// cycle. The first transient failure re-queues the failed payload and the
// rest of the batch in order, and the non-nil return puts the endpoint
// into backoff.
func (h *httpHandler) flushPayloads(ctx context.Context, report func(SendReport), send func(context.Context, *Payload) error) error {
	h.queue.MergeRetry()
	batch := h.queue.TakeForFlush()

	for i, p := range batch {
		start := time.Now()
		err := send(ctx, p)
		rep := SendReport{
			Duration:       time.Since(start),
			BytesWritten:   len(p.Data),
			MetricsWritten: p.MetricsCount,
			Err:            err,
		}
		report(rep)

		if err == nil {
			h.queue.Release(p)
			continue
		}
		if !IsTransient(err) {
			h.cfg.OnError(err)
			h.queue.Release(p)
			h.queue.dropped.Add(1)
			h.cfg.OnDrop(1)
			continue
		}
		if dropped := h.queue.Retry(p, h.cfg.MaxRetries); dropped {
			h.cfg.OnDrop(1)
			h.cfg.OnError(fmt.Errorf("endpoint %s: payload dropped after %d attempts: %w", h.name, p.SendAttempts, err))
		}
		for _, rest := range batch[i+1:] {
			h.queue.Requeue(rest)
		}
		return err
	}
	return nil
}

type gzipped struct {
	buf *bytes.Buffer
}

func (g *gzipped) bytes() []byte {
	if g == nil || g.buf == nil {
		return nil
	}
	return g.buf.Bytes()
}

func (g *gzipped) release() {
	if g == nil || g.buf == nil {
		return
	}
	g.buf.Reset()
	gzipBufferPool.Put(g.buf)
	g.buf = nil
}

func gzipBytes(src []byte) (*gzipped, error) {
	buf := gzipBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	zw := gzipWriterPool.Get().(*gzip.Writer)
	zw.Reset(buf)
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		gzipWriterPool.Put(zw)
		buf.Reset()
		gzipBufferPool.Put(buf)
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		gzipWriterPool.Put(zw)
		buf.Reset()
		gzipBufferPool.Put(buf)
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	gzipWriterPool.Put(zw)
	return &gzipped{buf: buf}, nil
}
