// Package strategy decides how each source is fetched and when a failed or
// empty lightweight fetch is retried in the browser.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/fetch"
	"github.com/ACS-web2026/aste-backend/internal/listing"
)

var ErrUnknownMethod = errors.New("unknown fetch method")

type Config struct {
	FastTimeout     time.Duration
	RenderedTimeout time.Duration
}

// Result is what one source yielded in a cycle. Err holds the transport
// failure of the last attempt, if any; it is informational only.
type Result struct {
	Listings  []domain.Listing
	Method    domain.FetchMethod
	Escalated bool
	Err       error
}

type Selector struct {
	fetchers map[domain.FetchMethod]Fetcher
	builder  *listing.Builder
	recorder PerformanceRecorder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewSelector builds a selector. A nil fetcher disables its method; a nil
// recorder disables attempt recording.
func NewSelector(
	fast Fetcher,
	rendered Fetcher,
	builder *listing.Builder,
	recorder PerformanceRecorder,
	cfg Config,
	logger *slog.Logger,
) *Selector {
	if cfg.FastTimeout == 0 {
		cfg.FastTimeout = 10 * time.Second
	}
	if cfg.RenderedTimeout == 0 {
		cfg.RenderedTimeout = 30 * time.Second
	}

	fetchers := make(map[domain.FetchMethod]Fetcher, 2)
	if fast != nil {
		fetchers[domain.MethodFast] = fast
	}
	if rendered != nil {
		fetchers[domain.MethodRendered] = rendered
	}

	return &Selector{
		fetchers: fetchers,
		builder:  builder,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With("component", "strategy"),
		now:      time.Now,
	}
}

// Collect fetches src and returns its admitted listings. A configured method
// is used alone. In auto mode a fast fetch that admits nothing, failures
// included, is followed by exactly one rendered fetch.
func (s *Selector) Collect(ctx context.Context, src domain.SourceConfig, filter []string) (Result, error) {
	method := src.Method
	if method == "" {
		method = domain.MethodAuto
	}

	switch method {
	case domain.MethodFast, domain.MethodRendered:
		listings, err := s.attempt(ctx, src, method, filter)
		return Result{Listings: listings, Method: method, Err: err}, nil

	case domain.MethodAuto:
		listings, err := s.attempt(ctx, src, domain.MethodFast, filter)
		if len(listings) > 0 {
			return Result{Listings: listings, Method: domain.MethodFast}, nil
		}
		if ctx.Err() != nil {
			return Result{Method: domain.MethodFast, Err: err}, nil
		}

		s.logger.Info("no listings from fast fetch, escalating",
			"source", src.Name, "to", domain.MethodRendered)
		listings, err = s.attempt(ctx, src, domain.MethodRendered, filter)
		return Result{Listings: listings, Method: domain.MethodRendered, Escalated: true, Err: err}, nil
	}

	return Result{}, fmt.Errorf("%w %q for source %s", ErrUnknownMethod, method, src.Name)
}

// attempt runs one time-bounded fetch. Transport failures come back as an
// error next to zero listings and never escape Collect.
func (s *Selector) attempt(ctx context.Context, src domain.SourceConfig, method domain.FetchMethod, filter []string) ([]domain.Listing, error) {
	fetcher, ok := s.fetchers[method]
	if !ok {
		err := fmt.Errorf("%s fetcher not enabled", method)
		s.logger.Warn("fetch skipped", "source", src.Name, "method", method, "error", err)
		return nil, err
	}

	req := s.request(src, method, filter)

	timeout := s.cfg.FastTimeout
	if method == domain.MethodRendered {
		timeout = s.cfg.RenderedTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.now()
	doc, err := fetcher.Fetch(attemptCtx, req)
	elapsed := s.now().Sub(start)

	var listings []domain.Listing
	if err == nil && doc != nil {
		listings = s.builder.BuildAll(doc.Document, src, filter)
	}

	attempt := domain.FetchAttempt{
		Source:   src.Name,
		Method:   method,
		Success:  err == nil,
		Count:    len(listings),
		Duration: elapsed,
		At:       start.UTC(),
	}

	if err != nil {
		attempt.Error = err.Error()
		s.logger.Warn("fetch failed",
			"source", src.Name,
			"method", method,
			"duration", elapsed,
			"error", err,
		)
	} else {
		s.logger.Info("fetch completed",
			"source", src.Name,
			"method", method,
			"duration", elapsed,
			"listings", len(listings),
		)
	}

	s.record(ctx, attempt)
	return listings, err
}

func (s *Selector) request(src domain.SourceConfig, method domain.FetchMethod, filter []string) fetch.Request {
	req := fetch.Request{URL: src.URL, Source: src.Name}
	if method != domain.MethodRendered || !src.RequiresInteraction {
		return req
	}

	req.Locality = firstLocality(filter)
	if req.Locality == "" {
		return req
	}
	req.RequiresInteraction = true
	req.Interaction = src.Interaction
	if src.SearchURL != "" {
		req.URL = src.SearchURL
	}
	return req
}

func (s *Selector) record(ctx context.Context, attempt domain.FetchAttempt) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Warn("failed to record fetch attempt", "source", attempt.Source, "error", err)
	}
}

func firstLocality(filter []string) string {
	for _, f := range filter {
		if f = strings.TrimSpace(f); f != "" {
			return f
		}
	}
	return ""
}
