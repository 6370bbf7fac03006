package api

import (
	"context"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type CycleRunner interface {
	RunCycle(ctx context.Context, filter []string) (*domain.CycleResult, error)
}

type StatsProvider interface {
	Stats(ctx context.Context, since time.Time) ([]domain.SiteStats, error)
}

type ListingReader interface {
	Snapshot() []domain.Listing
	Get(id string) (domain.Listing, error)
	HistoryFor(id string) []domain.PriceHistoryEntry
}

// BrowserStatus reports whether the headless browser is running.
type BrowserStatus interface {
	Active() bool
}
