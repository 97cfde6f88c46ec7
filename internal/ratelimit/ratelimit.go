package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Budget caps how many LLM analyses each tier may run within a window and
// tracks how many were served from cache instead.
type Budget struct {
	mu          sync.Mutex
	limits      map[string]int
	used        map[string]int
	cacheHits   int
	cacheMisses int
	window      time.Duration
	resetTime   time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// NewBudget creates a budget with per tier limits. A limit of 0 means unlimited.
// Counters live in memory; Load and Save carry them across runs so the window
// spans several bulletins.
func NewBudget(limits map[string]int, window time.Duration, logger *slog.Logger) *Budget {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	b := &Budget{
		limits: l,
		used:   make(map[string]int),
		window: window,
		now:    time.Now,
		logger: logger,
	}
	b.resetTime = b.now().Add(window)
	return b
}

// Use consumes one unit of the tier budget.
func (b *Budget) Use(tier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	if max := b.limits[tier]; max > 0 && b.used[tier] >= max {
		return fmt.Errorf("%s analysis budget exceeded (%d/%d)", tier, b.used[tier], max)
	}
	b.used[tier]++
	b.cacheMisses++

	b.logger.Debug("analysis budget used", "tier", tier, "used", b.used[tier], "limit", b.limits[tier])
	return nil
}

// RecordCacheHit records an analysis answered from cache.
func (b *Budget) RecordCacheHit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheHits++
}

func (b *Budget) cacheHitRate() float64 {
	total := b.cacheHits + b.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(b.cacheHits) / float64(total) * 100
}

// GetStats returns current budget statistics.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]interface{}{
		"cache_hits":     b.cacheHits,
		"cache_misses":   b.cacheMisses,
		"cache_hit_rate": b.cacheHitRate(),
		"reset_time":     b.resetTime,
	}
	for tier, max := range b.limits {
		stats[tier+"_used"] = b.used[tier]
		stats[tier+"_limit"] = max
	}
	return stats
}

// LogStats writes current statistics to the logger.
func (b *Budget) LogStats() {
	stats := b.GetStats()
	args := make([]any, 0, len(stats)*2)
	for k, v := range stats {
		args = append(args, k, v)
	}
	b.logger.Info("analysis budget statistics", args...)
}

// checkReset resets counters once the window has passed. Callers hold mu.
func (b *Budget) checkReset() {
	if b.now().After(b.resetTime) {
		b.logger.Info("resetting analysis budget", "used", b.used, "cache_hits", b.cacheHits)
		b.used = make(map[string]int)
		b.cacheHits = 0
		b.cacheMisses = 0
		b.resetTime = b.now().Add(b.window)
	}
}

type budgetState struct {
	Used        map[string]int `json:"used"`
	CacheHits   int            `json:"cache_hits"`
	CacheMisses int            `json:"cache_misses"`
	ResetTime   time.Time      `json:"reset_time"`
}

// Load restores counters written by Save. A missing file or a window that has
// already ended leaves the budget untouched.
func (b *Budget) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read budget state: %w", err)
	}

	var st budgetState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("unmarshal budget state: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.now().Before(st.ResetTime) {
		return nil
	}
	b.used = make(map[string]int, len(st.Used))
	for k, v := range st.Used {
		b.used[k] = v
	}
	b.cacheHits = st.CacheHits
	b.cacheMisses = st.CacheMisses
	b.resetTime = st.ResetTime
	b.logger.Debug("analysis budget restored", "used", b.used, "reset_time", b.resetTime)
	return nil
}

// Save writes the counters to path.
func (b *Budget) Save(path string) error {
	b.mu.Lock()
	st := budgetState{
		Used:        make(map[string]int, len(b.used)),
		CacheHits:   b.cacheHits,
		CacheMisses: b.cacheMisses,
		ResetTime:   b.resetTime,
	}
	for k, v := range b.used {
		st.Used[k] = v
	}
	b.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal budget state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create budget dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write budget state: %w", err)
	}
	return os.Rename(tmp, path)
}
