// Package store defines the sink's storage port and its in-memory and
// Postgres implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a series has no stored readings.
var ErrNotFound = errors.New("not found")

// Entry is one stored reading.
type Entry struct {
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Metadata is one metric metadata triple.
type Metadata struct {
	Metric string `json:"metric"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// Store persists readings and metadata received by the sink.
type Store interface {
	Put(ctx context.Context, entries []Entry) error
	PutMetadata(ctx context.Context, items []Metadata) error
	Series(ctx context.Context, metric string) ([]Entry, error)
	Metadata(ctx context.Context) ([]Metadata, error)
	Ping(ctx context.Context) error
	Close() error
}
