package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_PutAndSeries(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	err := m.Put(ctx, []Entry{
		{Metric: "a", Value: 1, Timestamp: now},
		{Metric: "b", Value: 2, Timestamp: now},
		{Metric: "a", Value: 3, Timestamp: now.Add(time.Second)},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Series(ctx, "a")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 3 {
		t.Fatalf("unexpected series: %+v", got)
	}

	all, err := m.Series(ctx, "")
	if err != nil {
		t.Fatalf("Series all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 entries, got %d", len(all))
	}

	if _, err := m.Series(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemory_Metadata(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.PutMetadata(ctx, []Metadata{
		{Metric: "b", Name: "unit", Value: "bytes"},
		{Metric: "a", Name: "desc", Value: "first"},
		{Metric: "a", Name: "desc", Value: "second"},
	})
	if err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}

	got, err := m.Metadata(ctx)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 triples after upsert, got %d", len(got))
	}
	if got[0].Metric != "a" || got[0].Value != "second" {
		t.Fatalf("upsert did not keep latest: %+v", got[0])
	}
	if got[1].Metric != "b" {
		t.Fatalf("not sorted: %+v", got)
	}
}
