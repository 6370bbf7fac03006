package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/config"
	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/store"
)

// CycleService runs collection cycles over the configured sources. Cycles
// never overlap: a cycle requested while another runs waits for it.
type CycleService struct {
	sources   []domain.SourceConfig
	collector Collector
	store     *store.Store
	persister Persister
	publisher Publisher
	logger    *slog.Logger
	config    config.CycleConfig

	running sync.Mutex
	now     func() time.Time

	lastMu  sync.RWMutex
	lastRun time.Time
}

// NewCycleService builds the service. persister and publisher may be nil.
func NewCycleService(
	sources []domain.SourceConfig,
	collector Collector,
	st *store.Store,
	persister Persister,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.CycleConfig,
) *CycleService {
	return &CycleService{
		sources:   sources,
		collector: collector,
		store:     st,
		persister: persister,
		publisher: publisher,
		logger:    logger.With("component", "cycle"),
		config:    cfg,
		now:       time.Now,
	}
}

// Restore loads persisted listings into the store.
func (s *CycleService) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	listings, history, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	s.store.Restore(listings, history)

	if evicted := s.store.EnforceCapacity(); len(evicted) > 0 {
		s.flush(ctx)
	}

	s.logger.Info("store restored", "listings", s.store.Len(), "history_entries", len(history))
	return nil
}

// RunCycle processes every source in declared order, one at a time, and
// returns what this cycle admitted. A failing source is reported in its
// SiteStatus and never stops the cycle.
func (s *CycleService) RunCycle(ctx context.Context, filter []string) (*domain.CycleResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	start := s.now()
	s.logger.Info("starting cycle", "sources", len(s.sources), "localities", filter)

	result := &domain.CycleResult{
		SiteStatuses: make([]domain.SiteStatus, 0, len(s.sources)),
		Results:      []domain.EnrichedListing{},
	}
	var admitted []domain.Listing
	var events []domain.ListingEvent
	var interrupted error

	for i, src := range s.sources {
		if err := ctx.Err(); err != nil {
			interrupted = fmt.Errorf("cycle interrupted before %s: %w", src.Name, err)
			break
		}

		listings, status := s.processSource(ctx, src, filter)
		result.SiteStatuses = append(result.SiteStatuses, status)

		for _, l := range listings {
			res := s.store.Upsert(l)
			admitted = append(admitted, res.Listing)
			if ev, ok := eventFor(res); ok {
				events = append(events, ev)
			}
		}

		if i < len(s.sources)-1 && !s.pace(ctx) {
			interrupted = fmt.Errorf("cycle interrupted after %s: %w", src.Name, ctx.Err())
			break
		}
	}

	// Whatever was stored so far is persisted even when the cycle was cut short.
	if evicted := s.store.EnforceCapacity(); len(evicted) > 0 {
		s.logger.Info("evicted oldest listings", "count", len(evicted), "capacity", s.config.Capacity)
	}
	s.flush(ctx)
	s.publish(context.WithoutCancel(ctx), events)

	if interrupted != nil {
		s.logger.Warn("cycle interrupted", "error", interrupted, "admitted", len(admitted))
		return nil, interrupted
	}

	for _, l := range admitted {
		result.Results = append(result.Results, s.enrich(l))
	}
	result.TotalResults = len(admitted)
	result.LastUpdate = s.now().UTC()
	result.Duration = s.now().Sub(start)

	s.lastMu.Lock()
	s.lastRun = result.LastUpdate
	s.lastMu.Unlock()

	s.logger.Info("cycle completed",
		"admitted", result.TotalResults,
		"stored", s.store.Len(),
		"events", len(events),
		"duration", result.Duration,
	)

	return result, nil
}

// processSource isolates one source: errors and panics become an error status.
func (s *CycleService) processSource(ctx context.Context, src domain.SourceConfig, filter []string) (listings []domain.Listing, status domain.SiteStatus) {
	status = domain.SiteStatus{Source: src.Name, Method: src.Method}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("source panicked",
				"source", src.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			listings = nil
			status.Count = 0
			status.Outcome = domain.OutcomeError
			status.Message = fmt.Sprint(r)
		}
	}()

	res, err := s.collector.Collect(ctx, src, filter)
	if err != nil {
		s.logger.Error("source failed", "source", src.Name, "error", err)
		status.Outcome = domain.OutcomeError
		status.Message = err.Error()
		return nil, status
	}

	if res.Method != "" {
		status.Method = res.Method
	}
	status.Escalated = res.Escalated
	status.Count = len(res.Listings)
	if status.Count > 0 {
		status.Outcome = domain.OutcomeOK
	} else {
		status.Outcome = domain.OutcomeEmpty
		if res.Err != nil {
			status.Message = res.Err.Error()
		}
	}
	return res.Listings, status
}

// pace waits between sources. It reports false if ctx ended first.
func (s *CycleService) pace(ctx context.Context) bool {
	if s.config.Pacing <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(s.config.Pacing)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// flush hands the store journal to the persister. Failed changes are put
// back for the next cycle.
func (s *CycleService) flush(ctx context.Context) {
	if s.persister == nil {
		s.store.Drain()
		return
	}

	changes := s.store.Drain()
	if changes.Empty() {
		return
	}

	if err := s.persister.Save(context.WithoutCancel(ctx), changes); err != nil {
		s.store.Requeue(changes)
		s.logger.Error("failed to persist changes",
			"error", err,
			"listings", len(changes.Upserted),
			"history", len(changes.History),
			"evicted", len(changes.Evicted),
		)
		return
	}

	s.logger.Debug("changes persisted",
		"listings", len(changes.Upserted),
		"history", len(changes.History),
		"evicted", len(changes.Evicted),
	)
}

func (s *CycleService) publish(ctx context.Context, events []domain.ListingEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}

	var published, failed int
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			failed++
			s.logger.Warn("failed to publish listing event",
				"listing_id", ev.Listing.ID,
				"action", ev.Action,
				"error", err,
			)
			continue
		}
		published++
	}
	s.logger.Info("listing events published", "published", published, "failed", failed)
}

// enrich attaches the price history when the listing has more than one price.
func (s *CycleService) enrich(l domain.Listing) domain.EnrichedListing {
	out := domain.EnrichedListing{Listing: l}

	h := s.store.HistoryFor(l.ID)
	if len(h) <= 1 {
		return out
	}
	out.PriceHistory = make([]domain.PricePoint, len(h))
	for i, e := range h {
		out.PriceHistory[i] = domain.PricePoint{Price: e.Price, ObservedAt: e.ObservedAt}
	}
	return out
}

// LastRun is the completion time of the latest cycle, zero before the first.
func (s *CycleService) LastRun() time.Time {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastRun
}

func (s *CycleService) Sources() []domain.SourceConfig {
	return s.sources
}

func eventFor(res store.UpsertResult) (domain.ListingEvent, bool) {
	switch res.Action {
	case store.Created:
		return domain.ListingEvent{Action: domain.EventCreate, Listing: res.Listing}, true
	case store.PriceChanged:
		return domain.ListingEvent{
			Action:        domain.EventPriceChange,
			Listing:       res.Listing,
			PreviousPrice: res.PreviousPrice,
		}, true
	}
	return domain.ListingEvent{}, false
}
