package statline

import (
	"runtime"
	"sync/atomic"
)

// bag is a lock-free append-only value buffer built from a chain of fixed
// segments. Writers claim a slot by advancing the segment cursor and then
// publish it with a per-slot ready flag; drain atomically swaps in a fresh
// head and closes the old chain so late claimants retry on the new head.
// Within one drained window, values come back in arrival order.

const (
	bagSegmentSize = 256
	bagClosedBit   = int64(1) << 32
)

type bagValue struct {
	Value     float64
	UnixMilli int64
}

type bagSlot struct {
	value     float64
	unixMilli int64
	ready     atomic.Bool
}

type bagSegment struct {
	next   *bagSegment // older, already full
	cursor atomic.Int64
	slots  [bagSegmentSize]bagSlot
}

type bag struct {
	head atomic.Pointer[bagSegment]
}

func (b *bag) init() {
	b.head.Store(&bagSegment{})
}

func (b *bag) add(v float64, unixMilli int64) {
	for {
		seg := b.head.Load()
		n := seg.cursor.Add(1)
		if n&bagClosedBit != 0 {
			// Segment was closed by a concurrent drain.
			continue
		}
		idx := n - 1
		if idx >= bagSegmentSize {
			// Full segment: chain a fresh one and retry there. Losing
			// the CAS means someone else already installed one.
			b.head.CompareAndSwap(seg, &bagSegment{next: seg})
			continue
		}
		slot := &seg.slots[idx]
		slot.value = v
		slot.unixMilli = unixMilli
		slot.ready.Store(true)
		return
	}
}

// drain swaps the chain out and returns its values oldest-first. Claims
// made before the close are waited on briefly; claims after it land in the
// fresh head.
func (b *bag) drain() []bagValue {
	old := b.head.Swap(&bagSegment{})

	type closedSeg struct {
		seg   *bagSegment
		count int64
	}
	var segs []closedSeg
	total := 0
	for s := old; s != nil; s = s.next {
		claims := s.cursor.Add(bagClosedBit) - bagClosedBit
		if claims > bagSegmentSize {
			claims = bagSegmentSize
		}
		segs = append(segs, closedSeg{seg: s, count: claims})
		total += int(claims)
	}
	if total == 0 {
		return nil
	}

	out := make([]bagValue, 0, total)
	for i := len(segs) - 1; i >= 0; i-- {
		cs := segs[i]
		for j := int64(0); j < cs.count; j++ {
			slot := &cs.seg.slots[j]
			for !slot.ready.Load() {
				runtime.Gosched()
			}
			out = append(out, bagValue{Value: slot.value, UnixMilli: slot.unixMilli})
		}
	}
	return out
}
