package strategy

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/fetch"
)

type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Document, error)
}

type PerformanceRecorder interface {
	Record(ctx context.Context, attempt domain.FetchAttempt) error
}
