package ratelimit

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBudget_EnforcesTierLimit(t *testing.T) {
	b := NewBudget(map[string]int{"cloud": 2, "local": 0}, time.Hour, quietLogger())

	for i := 0; i < 2; i++ {
		if err := b.Use("cloud"); err != nil {
			t.Fatalf("Use %d: %v", i, err)
		}
	}
	if err := b.Use("cloud"); err == nil {
		t.Error("expected error past limit")
	}
	for i := 0; i < 50; i++ {
		if err := b.Use("local"); err != nil {
			t.Fatalf("unlimited tier refused: %v", err)
		}
	}
}

func TestBudget_ResetsAfterWindow(t *testing.T) {
	now := time.Now()
	b := NewBudget(map[string]int{"cloud": 1}, time.Hour, quietLogger())
	b.now = func() time.Time { return now }
	b.resetTime = now.Add(time.Hour)

	if err := b.Use("cloud"); err != nil {
		t.Fatal(err)
	}
	if err := b.Use("cloud"); err == nil {
		t.Fatal("expected exhausted")
	}
	b.now = func() time.Time { return now.Add(2 * time.Hour) }
	if err := b.Use("cloud"); err != nil {
		t.Errorf("expected reset after window: %v", err)
	}
}

func TestBudget_CacheHitRate(t *testing.T) {
	b := NewBudget(nil, time.Hour, quietLogger())
	_ = b.Use("local")
	b.RecordCacheHit()
	b.RecordCacheHit()
	b.RecordCacheHit()

	stats := b.GetStats()
	if rate := stats["cache_hit_rate"].(float64); rate != 75 {
		t.Errorf("hit rate = %v, want 75", rate)
	}
}

func TestBudget_SaveAndLoadSpanRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "budget.json")

	first := NewBudget(map[string]int{"cloud": 2}, 24*time.Hour, quietLogger())
	if err := first.Use("cloud"); err != nil {
		t.Fatal(err)
	}
	if err := first.Use("cloud"); err != nil {
		t.Fatal(err)
	}
	if err := first.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := NewBudget(map[string]int{"cloud": 2}, 24*time.Hour, quietLogger())
	if err := second.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := second.Use("cloud"); err == nil {
		t.Error("expected budget spent by the previous run")
	}
	if got := second.GetStats()["cloud_used"]; got != 2 {
		t.Errorf("cloud_used = %v, want 2", got)
	}
}

func TestBudget_LoadIgnoresEndedWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")

	old := NewBudget(map[string]int{"cloud": 1}, time.Hour, quietLogger())
	_ = old.Use("cloud")
	if err := old.Save(path); err != nil {
		t.Fatal(err)
	}

	later := NewBudget(map[string]int{"cloud": 1}, time.Hour, quietLogger())
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := later.Load(path); err != nil {
		t.Fatal(err)
	}
	if err := later.Use("cloud"); err != nil {
		t.Errorf("expected fresh budget: %v", err)
	}
}

func TestBudget_LoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	b := NewBudget(nil, time.Hour, quietLogger())

	if err := b.Load(filepath.Join(dir, "absent.json")); err != nil {
		t.Errorf("missing file: %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.Load(corrupt); err == nil {
		t.Error("expected error for corrupt state")
	}
}
