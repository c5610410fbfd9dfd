package sources_test

import (
	"context"
	"testing"
	"time"

	"github.com/emberfield/statline"
	"github.com/emberfield/statline/sources"
)

func newCollector(t *testing.T) (*statline.Collector, *statline.LocalHandler) {
	t.Helper()
	local := statline.NewLocalHandler()
	c, err := statline.New(statline.Options{
		Endpoints:        []statline.Endpoint{{Name: "local", Handler: local}},
		SnapshotInterval: time.Hour,
		MetadataInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c, local
}

func TestRegisterRuntime(t *testing.T) {
	c, local := newCollector(t)
	if err := sources.RegisterRuntime(c); err != nil {
		t.Fatalf("RegisterRuntime: %v", err)
	}
	if err := c.SnapshotNow(context.Background()); err != nil {
		t.Fatalf("SnapshotNow: %v", err)
	}

	for _, name := range []string{"go.mem.alloc", "go.mem.sys", "go.goroutines"} {
		r, ok := local.Get(name, "")
		if !ok {
			t.Fatalf("missing reading %s", name)
		}
		if r.Value <= 0 {
			t.Fatalf("%s: want positive value, got %v", name, r.Value)
		}
	}
}

func TestRegisterRuntime_Idempotent(t *testing.T) {
	c, _ := newCollector(t)
	if err := sources.RegisterRuntime(c); err != nil {
		t.Fatalf("first RegisterRuntime: %v", err)
	}
	if err := sources.RegisterRuntime(c); err != nil {
		t.Fatalf("second RegisterRuntime: %v", err)
	}
}

func TestRegisterHost(t *testing.T) {
	c, local := newCollector(t)
	if err := sources.RegisterHost(c); err != nil {
		t.Fatalf("RegisterHost: %v", err)
	}
	if err := c.SnapshotNow(context.Background()); err != nil {
		t.Fatalf("SnapshotNow: %v", err)
	}

	r, ok := local.Get("host.mem.total", "")
	if !ok {
		t.Fatal("missing reading host.mem.total")
	}
	if r.Value <= 0 {
		t.Fatalf("host.mem.total: want positive value, got %v", r.Value)
	}
}
