package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

type FastConfig struct {
	UserAgent   string
	Timeout     time.Duration
	RandomDelay time.Duration
}

// FastFetcher issues a single GET per request through a colly collector.
type FastFetcher struct {
	collector *colly.Collector
	logger    *slog.Logger
}

func NewFastFetcher(cfg FastConfig, logger *slog.Logger) (*FastFetcher, error) {
	c := colly.NewCollector(colly.AllowURLRevisit())

	// Inherited by every clone.
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("set limit rule: %w", err)
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	} else {
		extensions.RandomUserAgent(c)
	}
	extensions.Referer(c)

	return &FastFetcher{
		collector: c,
		logger:    logger.With("fetcher", string(domain.MethodFast)),
	}, nil
}

func (f *FastFetcher) Fetch(ctx context.Context, req Request) (*Document, error) {
	c := f.collector.Clone()
	c.Context = ctx

	var (
		doc      *Document
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")
		f.logger.Debug("requesting page", "source", req.Source, "url", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		d, err := newDocument(r.Body, r.Request.URL.String())
		if err != nil {
			fetchErr = err
			return
		}
		doc = d
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("get %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(req.URL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("visit %s: %w", req.URL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("empty response")
	}
	return doc, nil
}
