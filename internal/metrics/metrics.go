package metrics

import (
	"sync"
	"time"
)

// Metrics collects pipeline counters for the monitoring endpoint. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	SourcesOK              int64
	SourcesFailed          int64
	ArticlesCollected      int64
	ArticlesPreFiltered    int64
	EnrichedFullText       int64
	EnrichFallbacks        int64
	DuplicatesFiltered     int64
	AlreadyPublished       int64
	ArticlesAnalyzed       int64
	AnalysisFallbacks      int64
	ArticlesSelected       int64
	SuccessfulTranslations int64
	FailedTranslations     int64
	BulletinsWritten       int64

	// Timings
	StageDurations        map[string]time.Duration
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastRunID     string
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true, StageDurations: make(map[string]time.Duration)}
}

func (m *Metrics) add(field *int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += int64(n)
}

func (m *Metrics) RecordSource(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.add(&m.SourcesOK, 1)
		return
	}
	m.add(&m.SourcesFailed, 1)
}

func (m *Metrics) AddCollected(n int) {
	if m == nil {
		return
	}
	m.add(&m.ArticlesCollected, n)
}

func (m *Metrics) AddPreFiltered(n int) {
	if m == nil {
		return
	}
	m.add(&m.ArticlesPreFiltered, n)
}

func (m *Metrics) RecordEnrichment(fullText bool) {
	if m == nil {
		return
	}
	if fullText {
		m.add(&m.EnrichedFullText, 1)
		return
	}
	m.add(&m.EnrichFallbacks, 1)
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	if m == nil {
		return
	}
	m.add(&m.DuplicatesFiltered, n)
}

func (m *Metrics) AddAlreadyPublished(n int) {
	if m == nil {
		return
	}
	m.add(&m.AlreadyPublished, n)
}

func (m *Metrics) RecordAnalysis(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.add(&m.ArticlesAnalyzed, 1)
		return
	}
	m.add(&m.AnalysisFallbacks, 1)
}

func (m *Metrics) AddSelected(n int) {
	if m == nil {
		return
	}
	m.add(&m.ArticlesSelected, n)
}

func (m *Metrics) IncrementSuccessfulTranslations() {
	if m == nil {
		return
	}
	m.add(&m.SuccessfulTranslations, 1)
}

func (m *Metrics) IncrementFailedTranslations() {
	if m == nil {
		return
	}
	m.add(&m.FailedTranslations, 1)
}

func (m *Metrics) IncrementBulletinsWritten() {
	if m == nil {
		return
	}
	m.add(&m.BulletinsWritten, 1)
}

// RecordStage stores the duration of the latest run of a pipeline stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StageDurations == nil {
		m.StageDurations = make(map[string]time.Duration)
	}
	m.StageDurations[stage] = d
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun(runID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.LastRunID = runID
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stages := make(map[string]int64, len(m.StageDurations))
	for name, d := range m.StageDurations {
		stages[name] = d.Milliseconds()
	}

	return map[string]interface{}{
		"sources_ok":                 m.SourcesOK,
		"sources_failed":             m.SourcesFailed,
		"articles_collected":         m.ArticlesCollected,
		"articles_prefiltered":       m.ArticlesPreFiltered,
		"enriched_full_text":         m.EnrichedFullText,
		"enrich_fallbacks":           m.EnrichFallbacks,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"already_published":          m.AlreadyPublished,
		"articles_analyzed":          m.ArticlesAnalyzed,
		"analysis_fallbacks":         m.AnalysisFallbacks,
		"articles_selected":          m.ArticlesSelected,
		"successful_translations":    m.SuccessfulTranslations,
		"failed_translations":        m.FailedTranslations,
		"bulletins_written":          m.BulletinsWritten,
		"stage_durations_ms":         stages,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_run_id":                m.LastRunID,
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
