// Package store holds the deduplicated listing set and its price history.
package store

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

var ErrNotFound = errors.New("listing not found")

// observedStep separates entries that would otherwise share or reverse a
// timestamp. It matches the precision of the durable store.
const observedStep = time.Microsecond

type Action int

const (
	Unchanged Action = iota
	Created
	PriceChanged
)

func (a Action) String() string {
	switch a {
	case Created:
		return "create"
	case PriceChanged:
		return "price_change"
	}
	return "unchanged"
}

type UpsertResult struct {
	Action        Action
	PreviousPrice int64
	Listing       domain.Listing
}

// Changes is what happened since the last Drain. Evicted ids must be
// applied before Upserted and History: those only describe listings that
// are live in the store, so a listing evicted and then seen again is
// deleted first and inserted afresh.
type Changes struct {
	Upserted []domain.Listing
	History  []domain.PriceHistoryEntry
	Evicted  []string
}

// forget drops pending upserts and history of the given ids.
func (c *Changes) forget(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	c.Upserted = slices.DeleteFunc(c.Upserted, func(l domain.Listing) bool {
		_, ok := ids[l.ID]
		return ok
	})
	c.History = slices.DeleteFunc(c.History, func(e domain.PriceHistoryEntry) bool {
		_, ok := ids[e.ListingID]
		return ok
	})
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (c Changes) Empty() bool {
	return len(c.Upserted) == 0 && len(c.History) == 0 && len(c.Evicted) == 0
}

// Store is safe for concurrent use. Listings are evicted oldest-inserted
// first once there are more than capacity of them; capacity <= 0 disables
// eviction. Evicting a listing drops its history too.
type Store struct {
	mu       sync.Mutex
	capacity int
	now      func() time.Time

	listings map[string]domain.Listing
	order    []string
	history  map[string][]domain.PriceHistoryEntry
	journal  Changes
}

func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		now:      time.Now,
		listings: make(map[string]domain.Listing),
		history:  make(map[string][]domain.PriceHistoryEntry),
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Upsert inserts l or records a new price for it. An unchanged price is a
// no-op; any other observation appends exactly one history entry.
func (s *Store) Upsert(l domain.Listing) UpsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.listings[l.ID]
	if ok && existing.Price == l.Price {
		return UpsertResult{Action: Unchanged, PreviousPrice: existing.Price, Listing: existing}
	}

	observed := s.observedAt(l.ID)
	result := UpsertResult{Action: Created}

	if ok {
		result = UpsertResult{Action: PriceChanged, PreviousPrice: existing.Price}
		existing.Price = l.Price
		l = existing
	} else {
		s.order = append(s.order, l.ID)
	}
	l.LastUpdated = observed
	s.listings[l.ID] = l

	entry := domain.PriceHistoryEntry{ListingID: l.ID, Price: l.Price, ObservedAt: observed}
	s.history[l.ID] = append(s.history[l.ID], entry)

	s.journal.Upserted = append(s.journal.Upserted, l)
	s.journal.History = append(s.journal.History, entry)

	result.Listing = l
	return result
}

// observedAt returns the current time, moved forward if needed so that it
// is strictly after the listing's latest history entry.
func (s *Store) observedAt(id string) time.Time {
	now := s.now().UTC()
	h := s.history[id]
	if len(h) == 0 {
		return now
	}
	if last := h[len(h)-1].ObservedAt; !now.After(last) {
		return last.Add(observedStep)
	}
	return now
}

// EnforceCapacity evicts the oldest-inserted listings until the store holds
// at most capacity of them, and returns the evicted ids in eviction order.
func (s *Store) EnforceCapacity() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.order) - s.capacity
	if s.capacity <= 0 || excess <= 0 {
		return nil
	}

	evicted := make([]string, excess)
	copy(evicted, s.order[:excess])
	s.order = append(s.order[:0:0], s.order[excess:]...)

	for _, id := range evicted {
		delete(s.listings, id)
		delete(s.history, id)
	}
	s.journal.forget(idSet(evicted))
	s.journal.Evicted = append(s.journal.Evicted, evicted...)
	return evicted
}

// HistoryFor returns the price history of id, oldest first. Unknown ids
// yield an empty slice.
func (s *Store) HistoryFor(id string) []domain.PriceHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[id]
	out := make([]domain.PriceHistoryEntry, len(h))
	copy(out, h)
	return out
}

func (s *Store) Get(id string) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, ErrNotFound
	}
	return l, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Snapshot returns all listings in insertion order.
func (s *Store) Snapshot() []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Listing, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listings[id])
	}
	return out
}

// Restore replaces the contents with persisted state. listings must be in
// insertion order. History of unknown ids is dropped. Nothing is journaled.
func (s *Store) Restore(listings []domain.Listing, history []domain.PriceHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = make(map[string]domain.Listing, len(listings))
	s.order = make([]string, 0, len(listings))
	s.history = make(map[string][]domain.PriceHistoryEntry, len(listings))
	s.journal = Changes{}

	for _, l := range listings {
		if _, dup := s.listings[l.ID]; dup {
			continue
		}
		s.listings[l.ID] = l
		s.order = append(s.order, l.ID)
	}

	for _, e := range history {
		if _, ok := s.listings[e.ListingID]; !ok {
			continue
		}
		s.history[e.ListingID] = append(s.history[e.ListingID], e)
	}
	for id := range s.history {
		h := s.history[id]
		sort.SliceStable(h, func(i, j int) bool { return h[i].ObservedAt.Before(h[j].ObservedAt) })
	}
}

// Drain returns the changes since the previous Drain and clears them.
func (s *Store) Drain() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.journal
	s.journal = Changes{}
	return c
}

// Requeue puts changes that could not be persisted back in front of the
// journal so the next Drain retries them. Pending entries of listings
// evicted since c was drained are dropped from c.
func (s *Store) Requeue(c Changes) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.forget(idSet(s.journal.Evicted))
	s.journal = Changes{
		Upserted: append(c.Upserted, s.journal.Upserted...),
		History:  append(c.History, s.journal.History...),
		Evicted:  append(c.Evicted, s.journal.Evicted...),
	}
}
