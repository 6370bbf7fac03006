package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/ACS-web2026/aste-backend/internal/config"
	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/service/mocks"
	"github.com/ACS-web2026/aste-backend/internal/store"
	"github.com/ACS-web2026/aste-backend/internal/strategy"
)

type CycleServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	collector *mocks.MockCollector
	persister *mocks.MockPersister
	publisher *mocks.MockPublisher

	store   *store.Store
	sources []domain.SourceConfig
	cfg     config.CycleConfig
	logger  *slog.Logger
	service *CycleService
}

func (s *CycleServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.collector = mocks.NewMockCollector(s.ctrl)
	s.persister = mocks.NewMockPersister(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.CycleConfig{Capacity: 3}
	s.store = store.New(s.cfg.Capacity)
	s.sources = []domain.SourceConfig{
		{Name: "A", URL: "https://a.example.it/", Method: domain.MethodAuto},
		{Name: "B", URL: "https://b.example.it/", Method: domain.MethodFast},
		{Name: "C", URL: "https://c.example.it/", Method: domain.MethodRendered},
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = s.newService()
}

func (s *CycleServiceTestSuite) newService() *CycleService {
	return NewCycleService(s.sources, s.collector, s.store, s.persister, s.publisher, s.logger, s.cfg)
}

func (s *CycleServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCycleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CycleServiceTestSuite))
}

func listingOf(source string, n int, price int64) domain.Listing {
	return domain.Listing{
		ID:       fmt.Sprintf("%s-%d", source, n),
		Locality: "Roma",
		Price:    price,
		Source:   source,
	}
}

func found(listings ...domain.Listing) strategy.Result {
	return strategy.Result{Listings: listings, Method: domain.MethodFast}
}

func (s *CycleServiceTestSuite) expectSource(name string) *gomock.Call {
	return s.collector.EXPECT().Collect(gomock.Any(), sourceNamed(name), gomock.Any())
}

type sourceNamed string

func (n sourceNamed) Matches(x any) bool {
	src, ok := x.(domain.SourceConfig)
	return ok && src.Name == string(n)
}

func (n sourceNamed) String() string {
	return "source named " + string(n)
}

func (s *CycleServiceTestSuite) TestRunCycle_StatusesInSourceOrder() {
	gomock.InOrder(
		s.expectSource("A").Return(found(listingOf("A", 1, 150000), listingOf("A", 2, 90000)), nil),
		s.expectSource("B").Return(strategy.Result{Method: domain.MethodFast, Err: errors.New("status 503")}, nil),
		s.expectSource("C").Return(strategy.Result{}, strategy.ErrUnknownMethod),
	)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c store.Changes) error {
			s.Len(c.Upserted, 2)
			s.Len(c.History, 2)
			s.Empty(c.Evicted)
			return nil
		})
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.ListingEvent) error {
			s.Equal(domain.EventCreate, ev.Action)
			return nil
		}).Times(2)

	res, err := s.service.RunCycle(context.Background(), []string{"Roma"})

	s.Require().NoError(err)
	s.Equal(2, res.TotalResults)
	s.Len(res.Results, 2)
	s.False(res.LastUpdate.IsZero())
	s.Equal(res.LastUpdate, s.service.LastRun())

	s.Require().Len(res.SiteStatuses, 3)
	s.Equal(domain.SiteStatus{Source: "A", Count: 2, Outcome: domain.OutcomeOK, Method: domain.MethodFast}, res.SiteStatuses[0])
	s.Equal(domain.OutcomeEmpty, res.SiteStatuses[1].Outcome)
	s.Equal("status 503", res.SiteStatuses[1].Message)
	s.Equal(domain.OutcomeError, res.SiteStatuses[2].Outcome)
	s.Contains(res.SiteStatuses[2].Message, "unknown fetch method")
	s.Equal(domain.MethodRendered, res.SiteStatuses[2].Method)
}

func (s *CycleServiceTestSuite) TestRunCycle_PanickingSourceIsIsolated() {
	gomock.InOrder(
		s.expectSource("A").DoAndReturn(func(context.Context, domain.SourceConfig, []string) (strategy.Result, error) {
			panic("selector exploded")
		}),
		s.expectSource("B").Return(strategy.Result{}, nil),
		s.expectSource("C").Return(found(listingOf("C", 1, 50000)), nil),
	)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Require().Len(res.SiteStatuses, 3)
	s.Equal(domain.OutcomeError, res.SiteStatuses[0].Outcome)
	s.Equal("selector exploded", res.SiteStatuses[0].Message)
	s.Equal(domain.OutcomeEmpty, res.SiteStatuses[1].Outcome)
	s.Equal(domain.OutcomeOK, res.SiteStatuses[2].Outcome)
	s.Equal(1, res.TotalResults)
}

func (s *CycleServiceTestSuite) TestRunCycle_RepeatedCycleTracksPrices() {
	s.sources = s.sources[:1]
	s.service = s.newService()

	s.expectSource("A").Return(found(listingOf("A", 1, 100000), listingOf("A", 2, 60000)), nil)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := s.service.RunCycle(context.Background(), nil)
	s.Require().NoError(err)

	s.expectSource("A").Return(found(listingOf("A", 1, 120000), listingOf("A", 2, 60000)), nil)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c store.Changes) error {
			s.Require().Len(c.Upserted, 1)
			s.Equal("A-1", c.Upserted[0].ID)
			s.Require().Len(c.History, 1)
			s.Equal(int64(120000), c.History[0].Price)
			return nil
		})
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.ListingEvent) error {
			s.Equal(domain.EventPriceChange, ev.Action)
			s.Equal("A-1", ev.Listing.ID)
			s.Equal(int64(120000), ev.Listing.Price)
			s.Equal(int64(100000), ev.PreviousPrice)
			return nil
		})

	res, err := s.service.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Require().Len(res.Results, 2)
	s.Require().Len(res.Results[0].PriceHistory, 2)
	s.Equal(int64(100000), res.Results[0].PriceHistory[0].Price)
	s.Equal(int64(120000), res.Results[0].PriceHistory[1].Price)
	s.Equal(int64(120000), res.Results[0].Price)
	s.Nil(res.Results[1].PriceHistory)
	s.Len(s.store.HistoryFor("A-2"), 1)
}

func (s *CycleServiceTestSuite) TestRunCycle_ReportsEscalation() {
	s.sources = s.sources[:1]
	s.service = s.newService()

	s.expectSource("A").Return(strategy.Result{
		Listings:  []domain.Listing{listingOf("A", 1, 50000)},
		Method:    domain.MethodRendered,
		Escalated: true,
	}, nil)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Require().Len(res.SiteStatuses, 1)
	s.Equal(domain.MethodRendered, res.SiteStatuses[0].Method)
	s.True(res.SiteStatuses[0].Escalated)
}

func (s *CycleServiceTestSuite) TestRunCycle_EvictsOverCapacity() {
	s.sources = s.sources[:1]
	s.service = s.newService()

	s.expectSource("A").Return(found(
		listingOf("A", 1, 50000),
		listingOf("A", 2, 50000),
		listingOf("A", 3, 50000),
		listingOf("A", 4, 50000),
	), nil)
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c store.Changes) error {
			s.Len(c.Upserted, 3)
			s.Equal([]string{"A-1"}, c.Evicted)
			return nil
		})
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(4)

	res, err := s.service.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Equal(4, res.TotalResults)
	s.Equal(3, s.store.Len())
	_, err = s.store.Get("A-1")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *CycleServiceTestSuite) TestRunCycle_FailedSaveIsRetried() {
	s.sources = s.sources[:1]
	s.service = s.newService()

	s.expectSource("A").Return(found(listingOf("A", 1, 50000)), nil).Times(2)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	gomock.InOrder(
		s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down")),
		s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, c store.Changes) error {
				s.Len(c.Upserted, 1)
				return nil
			}),
	)

	res, err := s.service.RunCycle(context.Background(), nil)
	s.Require().NoError(err)
	s.Equal(1, res.TotalResults)

	_, err = s.service.RunCycle(context.Background(), nil)
	s.Require().NoError(err)
}

// durableRows applies saved changes the way the Postgres store does:
// deletions first, cascading to history, then upserts and history.
type durableRows struct {
	listings map[string]domain.Listing
	history  map[string][]domain.PriceHistoryEntry
}

func newDurableRows() *durableRows {
	return &durableRows{
		listings: map[string]domain.Listing{},
		history:  map[string][]domain.PriceHistoryEntry{},
	}
}

func (d *durableRows) save(_ context.Context, c store.Changes) error {
	for _, id := range c.Evicted {
		delete(d.listings, id)
		delete(d.history, id)
	}
	for _, l := range c.Upserted {
		d.listings[l.ID] = l
	}
	for _, e := range c.History {
		d.history[e.ListingID] = append(d.history[e.ListingID], e)
	}
	return nil
}

func (s *CycleServiceTestSuite) TestRunCycle_EvictedListingSeenAgainAfterFailedSave() {
	s.sources = s.sources[:1]
	s.cfg.Capacity = 1
	s.store = store.New(1)
	s.service = s.newService()
	db := newDurableRows()

	gomock.InOrder(
		s.expectSource("A").Return(found(listingOf("A", 1, 50000), listingOf("A", 2, 60000)), nil),
		s.expectSource("A").Return(found(listingOf("A", 1, 50000)), nil),
	)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	gomock.InOrder(
		s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down")),
		s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(db.save),
	)

	_, err := s.service.RunCycle(context.Background(), nil)
	s.Require().NoError(err)
	_, err = s.service.RunCycle(context.Background(), nil)
	s.Require().NoError(err)

	live, err := s.store.Get("A-1")
	s.Require().NoError(err)
	s.Require().Contains(db.listings, "A-1")
	s.Equal(live.Price, db.listings["A-1"].Price)
	s.NotContains(db.listings, "A-2")
	s.Equal(s.store.HistoryFor("A-1"), db.history["A-1"])
	s.Empty(db.history["A-2"])
}

func (s *CycleServiceTestSuite) TestRunCycle_WithoutPersisterOrPublisher() {
	s.sources = s.sources[:1]
	svc := NewCycleService(s.sources, s.collector, s.store, nil, nil, s.logger, s.cfg)
	s.expectSource("A").Return(found(listingOf("A", 1, 50000)), nil)

	res, err := svc.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Equal(1, res.TotalResults)
	s.True(s.store.Drain().Empty())
}

func (s *CycleServiceTestSuite) TestRunCycle_PacesBetweenSources() {
	s.cfg.Pacing = 40 * time.Millisecond
	s.service = s.newService()

	s.collector.EXPECT().Collect(gomock.Any(), gomock.Any(), gomock.Any()).Return(strategy.Result{}, nil).Times(3)

	start := time.Now()
	res, err := s.service.RunCycle(context.Background(), nil)

	s.Require().NoError(err)
	s.Len(res.SiteStatuses, 3)
	s.GreaterOrEqual(time.Since(start), 80*time.Millisecond)
}

func (s *CycleServiceTestSuite) TestRunCycle_CancelledWhilePacing() {
	s.cfg.Pacing = time.Hour
	s.service = s.newService()

	ctx, cancel := context.WithCancel(context.Background())
	s.expectSource("A").DoAndReturn(func(context.Context, domain.SourceConfig, []string) (strategy.Result, error) {
		time.AfterFunc(20*time.Millisecond, cancel)
		return found(listingOf("A", 1, 50000)), nil
	})
	s.persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.RunCycle(ctx, nil)

	s.ErrorIs(err, context.Canceled)
	s.Equal(1, s.store.Len())
}

func (s *CycleServiceTestSuite) TestRunCycle_SerializesConcurrentCycles() {
	s.sources = s.sources[:1]
	s.service = s.newService()

	var active, maxActive int32
	s.expectSource("A").DoAndReturn(func(context.Context, domain.SourceConfig, []string) (strategy.Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return strategy.Result{}, nil
	}).Times(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RunCycle(context.Background(), nil)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), atomic.LoadInt32(&maxActive))
}

func (s *CycleServiceTestSuite) TestRestore() {
	now := time.Now().UTC()
	s.persister.EXPECT().Load(gomock.Any()).Return(
		[]domain.Listing{listingOf("A", 1, 50000), listingOf("A", 2, 60000)},
		[]domain.PriceHistoryEntry{{ListingID: "A-1", Price: 50000, ObservedAt: now}},
		nil,
	)

	s.Require().NoError(s.service.Restore(context.Background()))

	s.Equal(2, s.store.Len())
	s.Len(s.store.HistoryFor("A-1"), 1)
}

func (s *CycleServiceTestSuite) TestRestore_OverCapacityPersistsEviction() {
	s.persister.EXPECT().Load(gomock.Any()).Return(
		[]domain.Listing{listingOf("A", 1, 1), listingOf("A", 2, 1), listingOf("A", 3, 1), listingOf("A", 4, 1)},
		nil,
		nil,
	)
	s.persister.EXPECT().Save(gomock.Any(), store.Changes{Evicted: []string{"A-1"}}).Return(nil)

	s.Require().NoError(s.service.Restore(context.Background()))
	s.Equal(3, s.store.Len())
}

func (s *CycleServiceTestSuite) TestRestore_LoadError() {
	s.persister.EXPECT().Load(gomock.Any()).Return(nil, nil, errors.New("no db"))

	s.Error(s.service.Restore(context.Background()))
}
