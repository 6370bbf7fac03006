package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/store"
)

// historyBatchSize keeps a multi-row insert well under the bind parameter limit.
const historyBatchSize = 1000

type listingRow struct {
	ID           string          `db:"id"`
	Locality     string          `db:"locality"`
	Address      string          `db:"address"`
	AuctionDate  string          `db:"auction_date"`
	Price        int64           `db:"price"`
	PropertyType string          `db:"property_type"`
	Description  string          `db:"description"`
	Link         string          `db:"link"`
	Source       string          `db:"source"`
	Lat          sql.NullFloat64 `db:"lat"`
	Lng          sql.NullFloat64 `db:"lng"`
	LastUpdated  time.Time       `db:"last_updated"`
}

func toRow(l domain.Listing) listingRow {
	r := listingRow{
		ID:           l.ID,
		Locality:     l.Locality,
		Address:      l.Address,
		AuctionDate:  l.AuctionDate,
		Price:        l.Price,
		PropertyType: l.PropertyType,
		Description:  l.Description,
		Link:         l.Link,
		Source:       l.Source,
		LastUpdated:  l.LastUpdated,
	}
	if l.Coordinates != nil {
		r.Lat = sql.NullFloat64{Float64: l.Coordinates.Lat, Valid: true}
		r.Lng = sql.NullFloat64{Float64: l.Coordinates.Lng, Valid: true}
	}
	return r
}

func (r listingRow) toDomain() domain.Listing {
	l := domain.Listing{
		ID:           r.ID,
		Locality:     r.Locality,
		Address:      r.Address,
		AuctionDate:  r.AuctionDate,
		Price:        r.Price,
		PropertyType: r.PropertyType,
		Description:  r.Description,
		Link:         r.Link,
		Source:       r.Source,
		LastUpdated:  r.LastUpdated.UTC(),
	}
	if r.Lat.Valid && r.Lng.Valid {
		l.Coordinates = &domain.Coordinates{Lat: r.Lat.Float64, Lng: r.Lng.Float64}
	}
	return l
}

// ListingStore persists the reconciliation store: listings, their price
// history, and evictions.
type ListingStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewListingStore(db *sqlx.DB, tx *TransactionManager) *ListingStore {
	return &ListingStore{db: db, tx: tx}
}

// Load returns listings in insertion order and all history, oldest first.
func (s *ListingStore) Load(ctx context.Context) ([]domain.Listing, []domain.PriceHistoryEntry, error) {
	var rows []listingRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT id, locality, address, auction_date, price, property_type,
		       description, link, source, lat, lng, last_updated
		FROM listings
		ORDER BY seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("select listings: %w", err)
	}

	var history []domain.PriceHistoryEntry
	err = sqlx.SelectContext(ctx, s.db, &history, `
		SELECT listing_id, price, observed_at
		FROM price_history
		ORDER BY listing_id, observed_at, id`)
	if err != nil {
		return nil, nil, fmt.Errorf("select price history: %w", err)
	}

	listings := make([]domain.Listing, len(rows))
	for i, r := range rows {
		listings[i] = r.toDomain()
	}
	for i := range history {
		history[i].ObservedAt = history[i].ObservedAt.UTC()
	}
	return listings, history, nil
}

// Save applies one journal of changes atomically. Evicted ids are deleted
// first, cascading to their history, so a listing that was evicted and seen
// again starts over; upserts come before history rows that reference them.
func (s *ListingStore) Save(ctx context.Context, changes store.Changes) error {
	if changes.Empty() {
		return nil
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ext := executor(ctx, s.db)

		if len(changes.Evicted) > 0 {
			_, err := ext.ExecContext(ctx, `DELETE FROM listings WHERE id = ANY($1)`, pq.Array(changes.Evicted))
			if err != nil {
				return fmt.Errorf("delete evicted listings: %w", err)
			}
		}

		for _, l := range changes.Upserted {
			if err := upsertListing(ctx, ext, l); err != nil {
				return err
			}
		}

		for start := 0; start < len(changes.History); start += historyBatchSize {
			end := min(start+historyBatchSize, len(changes.History))
			if err := insertHistory(ctx, ext, changes.History[start:end]); err != nil {
				return err
			}
		}

		return nil
	})
}

func upsertListing(ctx context.Context, ext sqlx.ExtContext, l domain.Listing) error {
	query := `
		INSERT INTO listings (
			id, locality, address, auction_date, price, property_type,
			description, link, source, lat, lng, last_updated
		) VALUES (
			:id, :locality, :address, :auction_date, :price, :property_type,
			:description, :link, :source, :lat, :lng, :last_updated
		)
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			last_updated = EXCLUDED.last_updated`

	if _, err := sqlx.NamedExecContext(ctx, ext, query, toRow(l)); err != nil {
		return fmt.Errorf("upsert listing %s: %w", l.ID, err)
	}
	return nil
}

func insertHistory(ctx context.Context, ext sqlx.ExtContext, entries []domain.PriceHistoryEntry) error {
	query := `
		INSERT INTO price_history (listing_id, price, observed_at)
		VALUES (:listing_id, :price, :observed_at)`

	if _, err := sqlx.NamedExecContext(ctx, ext, query, entries); err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}
