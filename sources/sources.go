// Package sources registers ready-made Go runtime and host metrics on a
// statline.Collector. The collector's snapshot loop is the sampler:
// every gauge reads from a shared memStats cache that refreshes at most
// once per snapshot window.
package sources

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/emberfield/statline"
)

// memSampler caches runtime.MemStats so that the dozen runtime gauges
// sharing it trigger a single ReadMemStats per snapshot.
type memSampler struct {
	mu    sync.Mutex
	ms    runtime.MemStats
	taken time.Time
}

func (s *memSampler) read() *runtime.MemStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.taken) > time.Second {
		runtime.ReadMemStats(&s.ms)
		s.taken = time.Now()
	}
	return &s.ms
}

// RegisterRuntime registers Go runtime gauges (heap, GC, goroutines)
// under the "go." prefix.
func RegisterRuntime(c *statline.Collector) error {
	s := &memSampler{}

	gauges := []struct {
		name, unit, desc string
		read             func(*runtime.MemStats) float64
	}{
		{"go.mem.alloc", "bytes", "Bytes of allocated heap objects.",
			func(ms *runtime.MemStats) float64 { return float64(ms.Alloc) }},
		{"go.mem.sys", "bytes", "Total bytes obtained from the OS.",
			func(ms *runtime.MemStats) float64 { return float64(ms.Sys) }},
		{"go.mem.heap_inuse", "bytes", "Bytes in in-use heap spans.",
			func(ms *runtime.MemStats) float64 { return float64(ms.HeapInuse) }},
		{"go.mem.heap_idle", "bytes", "Bytes in idle heap spans.",
			func(ms *runtime.MemStats) float64 { return float64(ms.HeapIdle) }},
		{"go.mem.heap_objects", "objects", "Number of allocated heap objects.",
			func(ms *runtime.MemStats) float64 { return float64(ms.HeapObjects) }},
		{"go.mem.stack_inuse", "bytes", "Bytes in stack spans.",
			func(ms *runtime.MemStats) float64 { return float64(ms.StackInuse) }},
		{"go.gc.cpu_fraction", "fraction", "Fraction of CPU time used by the GC.",
			func(ms *runtime.MemStats) float64 { return ms.GCCPUFraction }},
		{"go.gc.pause_total", "nanoseconds", "Cumulative GC stop-the-world pause time.",
			func(ms *runtime.MemStats) float64 { return float64(ms.PauseTotalNs) }},
		{"go.gc.next", "bytes", "Heap size target for the next GC cycle.",
			func(ms *runtime.MemStats) float64 { return float64(ms.NextGC) }},
	}
	for _, g := range gauges {
		read := g.read
		_, err := c.GetSnapshotGauge(g.name, g.unit, g.desc, nil, func() (float64, bool) {
			return read(s.read()), true
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}

	counters := []struct {
		name, unit, desc string
		read             func(*runtime.MemStats) int64
	}{
		{"go.mem.mallocs", "allocations", "Cumulative count of heap objects allocated.",
			func(ms *runtime.MemStats) int64 { return int64(ms.Mallocs) }},
		{"go.mem.frees", "frees", "Cumulative count of heap objects freed.",
			func(ms *runtime.MemStats) int64 { return int64(ms.Frees) }},
		{"go.gc.cycles", "collections", "Cumulative count of completed GC cycles.",
			func(ms *runtime.MemStats) int64 { return int64(ms.NumGC) }},
	}
	for _, g := range counters {
		read := g.read
		_, err := c.GetSnapshotCounter(g.name, g.unit, g.desc, nil, func() (int64, bool) {
			return read(s.read()), true
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}

	_, err := c.GetSnapshotGauge("go.goroutines", "goroutines", "Number of live goroutines.",
		nil, func() (float64, bool) {
			return float64(runtime.NumGoroutine()), true
		})
	if err != nil {
		return fmt.Errorf("register go.goroutines: %w", err)
	}
	return nil
}

// cpuSampler caches one cpu.Percent call per snapshot for every
// per-core gauge sharing it.
type cpuSampler struct {
	mu    sync.Mutex
	pct   []float64
	taken time.Time
}

func (s *cpuSampler) read() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.taken) > time.Second {
		pct, err := cpu.Percent(0, true)
		if err != nil {
			return s.pct
		}
		s.pct = pct
		s.taken = time.Now()
	}
	return s.pct
}

// RegisterHost registers host RAM and CPU utilization gauges under the
// "host." prefix. CPU readings are per-core, tagged core=N.
func RegisterHost(c *statline.Collector) error {
	_, err := c.GetSnapshotGauge("host.mem.total", "bytes", "Total physical memory.",
		nil, func() (float64, bool) {
			vm, err := mem.VirtualMemory()
			if err != nil || vm == nil {
				return 0, false
			}
			return float64(vm.Total), true
		})
	if err != nil {
		return fmt.Errorf("register host.mem.total: %w", err)
	}
	_, err = c.GetSnapshotGauge("host.mem.free", "bytes", "Free physical memory.",
		nil, func() (float64, bool) {
			vm, err := mem.VirtualMemory()
			if err != nil || vm == nil {
				return 0, false
			}
			return float64(vm.Free), true
		})
	if err != nil {
		return fmt.Errorf("register host.mem.free: %w", err)
	}

	s := &cpuSampler{}
	group := statline.NewMetricGroup(c, "host.cpu.utilization", "percent",
		"Per-core CPU utilization.",
		func(core int) *statline.SnapshotGauge {
			return statline.NewSnapshotGauge(statline.Tags("core", fmt.Sprintf("%d", core)),
				func() (float64, bool) {
					pct := s.read()
					if core >= len(pct) {
						return 0, false
					}
					return pct[core], true
				})
		})
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	for i := 0; i < n; i++ {
		if _, err := group.Add(i); err != nil {
			return fmt.Errorf("register host.cpu.utilization core %d: %w", i, err)
		}
	}
	return nil
}

// Register wires up both the runtime and host metric sets.
func Register(c *statline.Collector) error {
	if err := RegisterRuntime(c); err != nil {
		return err
	}
	return RegisterHost(c)
}
