package statline

import (
	"sync"
	"testing"
)

func TestBag_OrderWithinWindow(t *testing.T) {
	var b bag
	b.init()

	for i := 0; i < 10; i++ {
		b.add(float64(i), int64(i))
	}
	got := b.drain()
	if len(got) != 10 {
		t.Fatalf("drained %d values", len(got))
	}
	for i, v := range got {
		if v.Value != float64(i) || v.UnixMilli != int64(i) {
			t.Fatalf("slot %d = %+v", i, v)
		}
	}
}

func TestBag_SpansSegments(t *testing.T) {
	var b bag
	b.init()

	const n = bagSegmentSize*3 + 17
	for i := 0; i < n; i++ {
		b.add(float64(i), 0)
	}
	got := b.drain()
	if len(got) != n {
		t.Fatalf("drained %d values, want %d", len(got), n)
	}
	for i, v := range got {
		if v.Value != float64(i) {
			t.Fatalf("order broken at %d: %v", i, v.Value)
		}
	}
}

func TestBag_EmptyDrain(t *testing.T) {
	var b bag
	b.init()
	if got := b.drain(); got != nil {
		t.Fatalf("empty drain = %v", got)
	}
	b.add(1, 0)
	b.drain()
	if got := b.drain(); got != nil {
		t.Fatalf("second drain = %v", got)
	}
}

func TestBag_AddAfterDrainGoesToNextWindow(t *testing.T) {
	var b bag
	b.init()

	b.add(1, 0)
	first := b.drain()
	b.add(2, 0)
	second := b.drain()

	if len(first) != 1 || first[0].Value != 1 {
		t.Fatalf("first window = %+v", first)
	}
	if len(second) != 1 || second[0].Value != 2 {
		t.Fatalf("second window = %+v", second)
	}
}

func TestBag_ConcurrentAddAndDrain(t *testing.T) {
	var b bag
	b.init()

	const (
		writers = 8
		perW    = 1000
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perW; i++ {
				b.add(1, 0)
			}
		}()
	}

	// Drain concurrently with the writers, then once more after they stop.
	// Nothing may be lost or duplicated across the windows.
	done := make(chan struct{})
	total := 0
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			total += len(b.drain())
		}
	}()
	wg.Wait()
	<-done
	total += len(b.drain())

	if total != writers*perW {
		t.Fatalf("collected %d values, want %d", total, writers*perW)
	}
}
