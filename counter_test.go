package statline

import (
	"sync"
	"testing"
	"time"
)

func TestCounter_ConcurrentIncrements(t *testing.T) {
	c := NewCounter(nil)
	attachForTest(t, c, "hits")

	const (
		goroutines = 8
		perG       = 125
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if err := c.Increment(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	now := time.Now().UTC()
	var sink captureSink
	c.preSerialize()
	c.serialize(&sink, now)

	if len(sink.readings) != 1 {
		t.Fatalf("readings = %d", len(sink.readings))
	}
	if got := sink.readings[0].Value; got != goroutines*perG {
		t.Fatalf("value = %v, want %d", got, goroutines*perG)
	}
	if sink.readings[0].Type != TypeCounter {
		t.Fatalf("type = %s", sink.readings[0].Type)
	}

	// The window was swapped out: a second snapshot with no activity
	// emits nothing.
	sink.readings = nil
	c.preSerialize()
	c.serialize(&sink, now)
	if len(sink.readings) != 0 {
		t.Fatalf("idle window emitted %d readings", len(sink.readings))
	}
}

func TestCounter_AddDuringSerializeNotLost(t *testing.T) {
	c := NewCounter(nil)
	attachForTest(t, c, "hits")

	_ = c.Add(10)
	c.preSerialize()
	// A record arriving between swap and emit belongs to the next window.
	_ = c.Add(5)

	var sink captureSink
	c.serialize(&sink, time.Now().UTC())
	if sink.readings[0].Value != 10 {
		t.Fatalf("window value = %v", sink.readings[0].Value)
	}

	sink.readings = nil
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 1 || sink.readings[0].Value != 5 {
		t.Fatalf("next window = %+v", sink.readings)
	}
}

func TestCumulativeCounter_EmitsAbsolute(t *testing.T) {
	c := NewCumulativeCounter(nil)
	attachForTest(t, c, "total")

	_ = c.Add(3)
	var sink captureSink
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if sink.readings[0].Value != 3 {
		t.Fatalf("value = %v", sink.readings[0].Value)
	}

	_ = c.Add(4)
	sink.readings = nil
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if sink.readings[0].Value != 7 {
		t.Fatalf("value = %v, want running total 7", sink.readings[0].Value)
	}
	if c.Value() != 7 {
		t.Fatalf("Value() = %d", c.Value())
	}
	if sink.readings[0].Type != TypeCumulativeCounter {
		t.Fatalf("type = %s", sink.readings[0].Type)
	}
}

func TestCumulativeCounter_ZeroStillEmits(t *testing.T) {
	c := NewCumulativeCounter(nil)
	attachForTest(t, c, "total")

	var sink captureSink
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 1 || sink.readings[0].Value != 0 {
		t.Fatalf("readings = %+v", sink.readings)
	}
}

func TestSnapshotCounter(t *testing.T) {
	var (
		v  int64
		ok bool
	)
	c := NewSnapshotCounter(nil, func() (int64, bool) { return v, ok })
	attachForTest(t, c, "snap")

	var sink captureSink
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 0 {
		t.Fatal("ok=false must emit nothing")
	}

	v, ok = 42, true
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 1 || sink.readings[0].Value != 42 {
		t.Fatalf("readings = %+v", sink.readings)
	}
}

func TestSnapshotCounter_ProducerPanics(t *testing.T) {
	c := NewSnapshotCounter(nil, func() (int64, bool) { panic("boom") })
	attachForTest(t, c, "snap")

	var sink captureSink
	c.preSerialize()
	c.serialize(&sink, time.Now().UTC())
	if len(sink.readings) != 0 {
		t.Fatal("panicking producer must emit nothing")
	}
}
