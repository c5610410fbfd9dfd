package statline

import (
	"sync"
	"testing"
	"time"
)

func TestSamplingGauge_LastValueWins(t *testing.T) {
	g := NewSamplingGauge(nil)
	attachForTest(t, g, "temp")

	var sink captureSink
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 0 {
		t.Fatal("unrecorded gauge must emit nothing")
	}

	_ = g.Record(1.0)
	_ = g.Record(2.5)
	_ = g.Record(-3.0)

	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 1 || sink.readings[0].Value != -3.0 {
		t.Fatalf("readings = %+v", sink.readings)
	}

	// Once recorded, the latest value keeps being emitted.
	sink.readings = nil
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 1 || sink.readings[0].Value != -3.0 {
		t.Fatalf("sticky emit: %+v", sink.readings)
	}
}

func TestEventGauge_EmitsPerEventInOrder(t *testing.T) {
	g := NewEventGauge(nil)
	attachForTest(t, g, "events")

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := g.RecordAt(float64(i), base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}

	var sink captureSink
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())

	if len(sink.readings) != 5 {
		t.Fatalf("readings = %d", len(sink.readings))
	}
	for i, r := range sink.readings {
		if r.Value != float64(i) {
			t.Fatalf("order broken at %d: %v", i, r.Value)
		}
		want := base.Add(time.Duration(i) * time.Millisecond)
		if !r.Time.Equal(want) {
			t.Fatalf("event %d stamped %v, want %v", i, r.Time, want)
		}
	}

	// Drained window: nothing left.
	sink.readings = nil
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 0 {
		t.Fatalf("second drain emitted %d readings", len(sink.readings))
	}
}

func TestEventGauge_ConcurrentRecords(t *testing.T) {
	g := NewEventGauge(nil)
	attachForTest(t, g, "events")

	const (
		goroutines = 8
		perG       = 200
	)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				if err := g.Record(1); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var sink captureSink
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != goroutines*perG {
		t.Fatalf("readings = %d, want %d", len(sink.readings), goroutines*perG)
	}
}

func TestSnapshotGauge(t *testing.T) {
	calls := 0
	g := NewSnapshotGauge(nil, func() (float64, bool) {
		calls++
		return 1.25, true
	})
	attachForTest(t, g, "snap")

	var sink captureSink
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if calls != 1 {
		t.Fatalf("producer calls = %d", calls)
	}
	if len(sink.readings) != 1 || sink.readings[0].Value != 1.25 {
		t.Fatalf("readings = %+v", sink.readings)
	}
}

func TestSnapshotGauge_NilProducer(t *testing.T) {
	g := NewSnapshotGauge(nil, nil)
	attachForTest(t, g, "snap")

	var sink captureSink
	g.preSerialize()
	g.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 0 {
		t.Fatal("nil producer must emit nothing")
	}
}
