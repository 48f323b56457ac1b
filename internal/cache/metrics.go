package cache

import (
	"sync/atomic"
	"time"
)

type CacheMetrics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
	writes    atomic.Int64
	deletes   atomic.Int64
	startTime time.Time
}

type MetricsSnapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Writes  int64   `json:"writes"`
	Deletes int64   `json:"deletes"`
	HitRate float64 `json:"hit_rate"`
	Uptime  string  `json:"uptime"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{startTime: time.Now()}
}

func (m *CacheMetrics) RecordHit()    { m.hits.Add(1) }
func (m *CacheMetrics) RecordMiss()   { m.misses.Add(1) }
func (m *CacheMetrics) RecordError()  { m.errors.Add(1) }
func (m *CacheMetrics) RecordWrite()  { m.writes.Add(1) }
func (m *CacheMetrics) RecordDelete() { m.deletes.Add(1) }

func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	hits := m.hits.Load()
	misses := m.misses.Load()

	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100.0
	}

	return MetricsSnapshot{
		Hits:    hits,
		Misses:  misses,
		Errors:  m.errors.Load(),
		Writes:  m.writes.Load(),
		Deletes: m.deletes.Load(),
		HitRate: rate,
		Uptime:  time.Since(m.startTime).Round(time.Second).String(),
	}
}
