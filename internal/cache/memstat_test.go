package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRAMPressurePercentUsedParsesMeminfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")
	content := "MemTotal:       10000 kB\nMemFree:         2000 kB\nMemAvailable:    2500 kB\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := RAMPressure{procMeminfoPath: path}
	pct, ok := r.PercentUsed()
	if !ok {
		t.Fatal("expected observable")
	}
	want := 75.0 // (1 - 2500/10000) * 100
	if pct != want {
		t.Errorf("got %.2f want %.2f", pct, want)
	}
}

func TestRAMPressureUnobservableOnMissingFile(t *testing.T) {
	r := RAMPressure{procMeminfoPath: "/nonexistent/meminfo"}
	_, ok := r.PercentUsed()
	if ok {
		t.Error("expected unobservable for missing file")
	}
}

func TestNoGPUMemoryAlwaysUnobservable(t *testing.T) {
	if _, ok := (NoGPUMemory{}).PercentUsed(); ok {
		t.Error("expected NoGPUMemory to always report unobservable")
	}
}
