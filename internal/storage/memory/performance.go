// Package memory holds in-process stand-ins for the Postgres stores, used
// when the database is disabled.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

const DefaultPerformanceLogSize = 10000

// PerformanceLog keeps the most recent fetch attempts in a ring.
type PerformanceLog struct {
	mu       sync.Mutex
	attempts []domain.FetchAttempt
	next     int
	full     bool
	now      func() time.Time
}

func NewPerformanceLog(size int) *PerformanceLog {
	if size <= 0 {
		size = DefaultPerformanceLogSize
	}
	return &PerformanceLog{
		attempts: make([]domain.FetchAttempt, size),
		now:      time.Now,
	}
}

func (l *PerformanceLog) Record(_ context.Context, a domain.FetchAttempt) error {
	if a.At.IsZero() {
		a.At = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts[l.next] = a
	l.next = (l.next + 1) % len(l.attempts)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Stats aggregates attempts made after since, per source and method,
// ordered the same way as the SQL store.
func (l *PerformanceLog) Stats(_ context.Context, since time.Time) ([]domain.SiteStats, error) {
	type key struct {
		source string
		method domain.FetchMethod
	}
	type acc struct {
		total, ok int64
		ms        int64
	}

	l.mu.Lock()
	n := l.next
	if l.full {
		n = len(l.attempts)
	}
	groups := make(map[key]*acc)
	for _, a := range l.attempts[:n] {
		if !a.At.After(since) {
			continue
		}
		k := key{a.Source, a.Method}
		g, ok := groups[k]
		if !ok {
			g = &acc{}
			groups[k] = g
		}
		g.total++
		if a.Success {
			g.ok++
		}
		g.ms += a.Duration.Milliseconds()
	}
	l.mu.Unlock()

	stats := make([]domain.SiteStats, 0, len(groups))
	for k, g := range groups {
		stats = append(stats, domain.SiteStats{
			Source:             k.source,
			Method:             k.method,
			TotalRequests:      g.total,
			SuccessfulRequests: g.ok,
			AvgResponseTimeMs:  float64(g.ms) / float64(g.total),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Source != stats[j].Source {
			return stats[i].Source < stats[j].Source
		}
		return stats[i].Method < stats[j].Method
	})
	return stats, nil
}
