package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emberfield/statline/cmd/sink/store"
)

// Handler exposes the sink's HTTP endpoints over a Store.
type Handler struct {
	store store.Store
}

// NewHandler wires a store into a gin-compatible handler.
func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

type putRequest struct {
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags"`
	Timestamp int64             `json:"timestamp"`
}

type metadataRequest struct {
	Metric string `json:"Metric"`
	Name   string `json:"Name"`
	Value  string `json:"Value"`
}

func decodePut(r io.Reader) ([]store.Entry, error) {
	var items []putRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	entries := make([]store.Entry, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Metric) == "" {
			return nil, errors.New("empty metric name")
		}
		entries = append(entries, store.Entry{
			Metric:    it.Metric,
			Value:     it.Value,
			Tags:      it.Tags,
			Timestamp: time.UnixMilli(it.Timestamp).UTC(),
		})
	}
	return entries, nil
}

// Put handles `POST /api/put` with a JSON array of datapoints.
func (h *Handler) Put(c *gin.Context) {
	entries, err := decodePut(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if err := h.store.Put(c.Request.Context(), entries); err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": len(entries)})
}

// PutMetadata handles `POST /api/metadata/put` with a JSON array of
// metric/name/value triples.
func (h *Handler) PutMetadata(c *gin.Context) {
	var items []metadataRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&items); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	meta := make([]store.Metadata, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Metric) == "" || strings.TrimSpace(it.Name) == "" {
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		meta = append(meta, store.Metadata{Metric: it.Metric, Name: it.Name, Value: it.Value})
	}
	if err := h.store.PutMetadata(c.Request.Context(), meta); err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": len(meta)})
}

// Series handles `GET /api/series?metric=name`, returning stored readings
// oldest first. Without the query parameter it returns everything.
func (h *Handler) Series(c *gin.Context) {
	entries, err := h.store.Series(c.Request.Context(), c.Query("metric"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.String(http.StatusNotFound, "not found")
		return
	case err != nil:
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Metadata handles `GET /api/metadata`, returning stored triples.
func (h *Handler) Metadata(c *gin.Context) {
	items, err := h.store.Metadata(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, items)
}

// Ping proxies `GET /ping` to the storage health check.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "db ping error: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}
