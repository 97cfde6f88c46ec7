package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_CountersAndStats(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordSource(i%2 == 0)
			m.RecordEnrichment(i < 3)
		}(i)
	}
	wg.Wait()
	m.AddCollected(42)
	m.RecordStage("collect", 1500*time.Millisecond)

	stats := m.GetStats()
	if stats["sources_ok"].(int64) != 5 || stats["sources_failed"].(int64) != 5 {
		t.Errorf("unexpected source counters: %v / %v", stats["sources_ok"], stats["sources_failed"])
	}
	if stats["enriched_full_text"].(int64) != 3 || stats["enrich_fallbacks"].(int64) != 7 {
		t.Errorf("unexpected enrichment counters")
	}
	if stats["articles_collected"].(int64) != 42 {
		t.Errorf("articles_collected = %v", stats["articles_collected"])
	}
	if stages := stats["stage_durations_ms"].(map[string]int64); stages["collect"] != 1500 {
		t.Errorf("stage duration = %v", stages["collect"])
	}
}

func TestMetrics_HealthTransitions(t *testing.T) {
	m := New()
	m.SetError("boom")
	if m.Healthy() {
		t.Fatal("expected unhealthy after error")
	}
	m.SetLastRun("run-1")
	if !m.Healthy() {
		t.Fatal("expected healthy after successful run")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordSource(true)
	m.AddSelected(3)
	m.RecordStage("x", time.Second)
	if len(m.GetStats()) != 0 {
		t.Errorf("expected empty stats for nil metrics")
	}
}
