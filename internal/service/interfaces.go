package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/store"
	"github.com/ACS-web2026/aste-backend/internal/strategy"
)

type Collector interface {
	Collect(ctx context.Context, src domain.SourceConfig, filter []string) (strategy.Result, error)
}

type Persister interface {
	Load(ctx context.Context) ([]domain.Listing, []domain.PriceHistoryEntry, error)
	Save(ctx context.Context, changes store.Changes) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.ListingEvent) error
	Close() error
}
