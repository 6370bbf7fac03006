//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/store"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB

	listings    *ListingStore
	performance *PerformanceStore
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(filepath.Join(migrationsPath, "001_init.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.listings = NewListingStore(db, NewTransactionManager(db))
	s.performance = NewPerformanceStore(db)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM price_history")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM listings")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM site_performance")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) listing(id string, price int64, at time.Time) domain.Listing {
	return domain.Listing{
		ID:           id,
		Locality:     "Milano",
		Address:      "Via Roma 12",
		AuctionDate:  "15/03/2025",
		Price:        price,
		PropertyType: "Appartamento",
		Description:  "Appartamento in Milano",
		Link:         "https://aste.example.it/" + id,
		Source:       "Asta Legale",
		LastUpdated:  at,
	}
}

func (s *PostgresIntegrationSuite) TestSaveAndLoad_RoundTrip() {
	t0 := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	st := store.New(10).WithClock(func() time.Time { return t0 })
	withCoords := s.listing("b", 200000, t0)
	withCoords.Coordinates = &domain.Coordinates{Lat: 45.46, Lng: 9.19}

	st.Upsert(s.listing("a", 150000, t0))
	st.Upsert(withCoords)
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	listings, history, err := s.listings.Load(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(listings, 2)
	s.Equal("a", listings[0].ID)
	s.Equal("b", listings[1].ID)
	s.Equal(int64(150000), listings[0].Price)
	s.Nil(listings[0].Coordinates)
	s.Require().NotNil(listings[1].Coordinates)
	s.InDelta(45.46, listings[1].Coordinates.Lat, 1e-9)
	s.True(t0.Equal(listings[0].LastUpdated))
	s.Len(history, 2)
}

func (s *PostgresIntegrationSuite) TestSave_PriceChangeUpdatesAndAppends() {
	now := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	st := store.New(10).WithClock(func() time.Time { return now })

	st.Upsert(s.listing("a", 150000, now))
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	now = now.Add(24 * time.Hour)
	st.Upsert(s.listing("a", 120000, now))
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	listings, history, err := s.listings.Load(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(listings, 1)
	s.Equal(int64(120000), listings[0].Price)
	s.True(now.Equal(listings[0].LastUpdated))
	s.Require().Len(history, 2)
	s.Equal(int64(150000), history[0].Price)
	s.Equal(int64(120000), history[1].Price)
}

func (s *PostgresIntegrationSuite) TestSave_EvictionCascadesToHistory() {
	st := store.New(1)
	st.Upsert(s.listing("old", 150000, time.Now()))
	st.Upsert(s.listing("new", 160000, time.Now()))
	st.EnforceCapacity()

	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	listings, history, err := s.listings.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listings, 1)
	s.Equal("new", listings[0].ID)
	s.Require().Len(history, 1)
	s.Equal("new", history[0].ListingID)
}

func (s *PostgresIntegrationSuite) TestSave_EvictedListingSeenAgainStartsOver() {
	now := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	st := store.New(1).WithClock(func() time.Time { return now })
	st.Upsert(s.listing("x", 150000, now))
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	now = now.Add(time.Hour)
	st.Upsert(s.listing("y", 160000, now))
	st.EnforceCapacity()
	failed := st.Drain()
	st.Requeue(failed)

	now = now.Add(time.Hour)
	st.Upsert(s.listing("x", 140000, now))
	st.EnforceCapacity()
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	listings, history, err := s.listings.Load(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(listings, 1)
	s.Equal("x", listings[0].ID)
	s.Equal(int64(140000), listings[0].Price)
	s.Require().Len(history, 1)
	s.Equal(int64(140000), history[0].Price)
}

func (s *PostgresIntegrationSuite) TestSave_RollsBackOnFailure() {
	bad := store.Changes{
		Upserted: []domain.Listing{s.listing("a", 150000, time.Now())},
		History: []domain.PriceHistoryEntry{
			{ListingID: "missing", Price: 1, ObservedAt: time.Now()},
		},
	}

	err := s.listings.Save(s.ctx, bad)
	s.Error(err)

	listings, _, err := s.listings.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(listings)
}

func (s *PostgresIntegrationSuite) TestLoad_PreservesInsertionOrderAcrossUpdates() {
	st := store.New(10)
	for _, id := range []string{"c", "a", "b"} {
		st.Upsert(s.listing(id, 100000, time.Now()))
	}
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))
	st.Upsert(s.listing("c", 90000, time.Now()))
	s.Require().NoError(s.listings.Save(s.ctx, st.Drain()))

	listings, _, err := s.listings.Load(s.ctx)

	s.Require().NoError(err)
	ids := []string{listings[0].ID, listings[1].ID, listings[2].ID}
	s.Equal([]string{"c", "a", "b"}, ids)
}

func (s *PostgresIntegrationSuite) TestTransaction_NestedJoinsOuter() {
	tm := NewTransactionManager(s.db)
	sentinel := errors.New("abort")

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		inner := tm.WithTransaction(ctx, func(ctx context.Context) error {
			return upsertListing(ctx, executor(ctx, s.db), s.listing("x", 150000, time.Now()))
		})
		s.Require().NoError(inner)
		return sentinel
	})

	s.ErrorIs(err, sentinel)
	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM listings"))
	s.Zero(count)
}

func (s *PostgresIntegrationSuite) TestPerformance_RecordAndStats() {
	now := time.Now().UTC()
	attempts := []domain.FetchAttempt{
		{Source: "A", Method: domain.MethodFast, Success: true, Count: 3, Duration: 100 * time.Millisecond, At: now},
		{Source: "A", Method: domain.MethodFast, Success: false, Duration: 300 * time.Millisecond, Error: "timeout", At: now},
		{Source: "A", Method: domain.MethodRendered, Success: true, Duration: 2 * time.Second, At: now},
		{Source: "B", Method: domain.MethodFast, Success: true, Duration: time.Second, At: now.Add(-48 * time.Hour)},
	}
	for _, a := range attempts {
		s.Require().NoError(s.performance.Record(s.ctx, a))
	}

	stats, err := s.performance.Stats(s.ctx, now.Add(-24*time.Hour))

	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	s.Equal("A", stats[0].Source)
	s.Equal(domain.MethodFast, stats[0].Method)
	s.Equal(int64(2), stats[0].TotalRequests)
	s.Equal(int64(1), stats[0].SuccessfulRequests)
	s.InDelta(200.0, stats[0].AvgResponseTimeMs, 0.01)
	s.Equal(domain.MethodRendered, stats[1].Method)
}
