package statline

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func testReading(name string, v float64, at time.Time) Reading {
	return Reading{
		Name:  name,
		Type:  TypeGauge,
		Value: v,
		Tags:  emptySerializedTags,
		Time:  at,
	}
}

func decodeBosun(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("payload is not valid JSON: %v\n%s", err, data)
	}
	return out
}

func TestWriter_SingleReading(t *testing.T) {
	q := NewPayloadQueue(1024, 4)
	w := NewWriter(q, bosunEncoder{}, nil, nil)
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	w.Add(testReading("a.b", 1.5, at))
	w.Finish()

	batch := q.TakeForFlush()
	if len(batch) != 1 {
		t.Fatalf("payloads = %d", len(batch))
	}
	got := decodeBosun(t, batch[0].Data)
	if len(got) != 1 || got[0]["metric"] != "a.b" || got[0]["value"] != 1.5 {
		t.Fatalf("decoded: %+v", got)
	}
	if got[0]["timestamp"] != float64(at.UnixMilli()) {
		t.Fatalf("timestamp: %v", got[0]["timestamp"])
	}
	if batch[0].MetricsCount != 1 {
		t.Fatalf("MetricsCount = %d", batch[0].MetricsCount)
	}
}

func TestWriter_ChunksAcrossPayloads(t *testing.T) {
	q := NewPayloadQueue(256, 16)
	w := NewWriter(q, bosunEncoder{}, nil, nil)
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	const n = 40
	for i := 0; i < n; i++ {
		w.Add(testReading("some.metric.name", float64(i), at))
	}
	w.Finish()

	batch := q.TakeForFlush()
	if len(batch) < 2 {
		t.Fatalf("expected chunking, got %d payloads", len(batch))
	}

	// Every payload is independently well-formed and no reading is lost
	// or duplicated across the boundary.
	total := 0
	next := 0.0
	for _, p := range batch {
		if len(p.Data) > q.PayloadSize() {
			t.Fatalf("payload exceeds size budget: %d > %d", len(p.Data), q.PayloadSize())
		}
		entries := decodeBosun(t, p.Data)
		if len(entries) != p.MetricsCount {
			t.Fatalf("MetricsCount %d != decoded %d", p.MetricsCount, len(entries))
		}
		for _, e := range entries {
			if e["value"] != next {
				t.Fatalf("order broken: got %v want %v", e["value"], next)
			}
			next++
			total++
		}
	}
	if total != n {
		t.Fatalf("readings across payloads = %d, want %d", total, n)
	}
}

func TestWriter_ReadingTooLarge(t *testing.T) {
	q := NewPayloadQueue(256, 4)
	var errs []error
	w := NewWriter(q, bosunEncoder{}, func(err error) { errs = append(errs, err) }, nil)
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	w.Add(testReading(strings.Repeat("x", 800), 1, at))
	w.Finish()

	if len(errs) != 1 || !errors.Is(errs[0], ErrReadingTooLarge) {
		t.Fatalf("errs = %v", errs)
	}
	if q.QueuedCount() != 0 {
		t.Fatal("oversized reading must not produce a payload")
	}
}

func TestWriter_TimestampOutOfRange(t *testing.T) {
	q := NewPayloadQueue(1024, 4)
	var errs []error
	w := NewWriter(q, bosunEncoder{}, func(err error) { errs = append(errs, err) }, nil)

	w.Add(testReading("a", 1, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
	w.Add(testReading("b", 2, time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)))
	w.Finish()

	if len(errs) != 2 {
		t.Fatalf("errs = %v", errs)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrTimestampOutOfRange) {
			t.Fatalf("err = %v", err)
		}
	}
	if q.QueuedCount() != 0 {
		t.Fatal("invalid readings must not produce a payload")
	}
}

func TestWriter_FinishWithoutReadings(t *testing.T) {
	q := NewPayloadQueue(1024, 4)
	w := NewWriter(q, bosunEncoder{}, nil, nil)
	w.Finish()
	if q.QueuedCount() != 0 {
		t.Fatal("empty batch produced a payload")
	}
}

func TestTimestampCache(t *testing.T) {
	var tc TimestampCache
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	a := tc.AppendMillis(nil, at)
	b := tc.AppendMillis(nil, at)
	if string(a) != string(b) {
		t.Fatalf("cache changed rendering: %s vs %s", a, b)
	}
	if len(a) != 13 {
		t.Fatalf("want 13-digit millis, got %q", a)
	}

	c := tc.AppendMillis(nil, at.Add(time.Second))
	if string(c) == string(a) {
		t.Fatal("cache did not refresh for a new instant")
	}
}

func TestAppendJSONString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{`with"quote`, `"with\"quote"`},
		{`back\slash`, `"back\\slash"`},
		{"ctrl\x01", `"ctrl\u0001"`},
	}
	for _, tc := range tests {
		if got := string(appendJSONString(nil, tc.in)); got != tc.want {
			t.Errorf("appendJSONString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
