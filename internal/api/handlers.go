package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/store"
)

const (
	maxRequestBody = 64 << 10
	statsWindow    = 24 * time.Hour
)

type Handlers struct {
	runner   CycleRunner
	stats    StatsProvider
	listings ListingReader
	browser  BrowserStatus
	schema   *jsonschema.Schema
	now      func() time.Time
	logger   *slog.Logger
}

// NewHandlers wires the REST handlers. browser may be nil when rendering is disabled.
func NewHandlers(runner CycleRunner, stats StatsProvider, listings ListingReader, browser BrowserStatus, logger *slog.Logger) (*Handlers, error) {
	schema, err := compileSchema(scrapeRequestSchema)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		runner:   runner,
		stats:    stats,
		listings: listings,
		browser:  browser,
		schema:   schema,
		now:      time.Now,
		logger:   logger,
	}, nil
}

type scrapeRequest struct {
	Localities []string `json:"localities"`
	Comuni     []string `json:"comuni"`
}

func (r scrapeRequest) filter() []string {
	out := make([]string, 0, len(r.Localities)+len(r.Comuni))
	for _, list := range [][]string{r.Localities, r.Comuni} {
		for _, l := range list {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}

type scrapeResponse struct {
	Success bool `json:"success"`
	*domain.CycleResult
}

// ScrapeAll runs a cycle restricted to the requested localities and
// answers with what it admitted.
func (h *Handlers) ScrapeAll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if err := validate(h.schema, body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req scrapeRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := h.runner.RunCycle(r.Context(), req.filter())
	if err != nil {
		h.logger.Error("manual cycle failed", "trace_id", TraceID(r.Context()), "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, scrapeResponse{Success: true, CycleResult: res})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"message":       "server running",
		"browserActive": h.browser != nil && h.browser.Active(),
	})
}

// Stats reports per source and method fetch statistics for the last 24 hours.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context(), h.now().Add(-statsWindow))
	if err != nil {
		h.logger.Error("failed to load stats", "trace_id", TraceID(r.Context()), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *Handlers) Listings(w http.ResponseWriter, _ *http.Request) {
	listings := h.listings.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(listings),
		"results": listings,
	})
}

func (h *Handlers) ListingHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.listings.Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history := h.listings.HistoryFor(id)
	points := make([]domain.PricePoint, len(history))
	for i, e := range history {
		points[i] = domain.PricePoint{Price: e.Price, ObservedAt: e.ObservedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listingId":    id,
		"priceHistory": points,
	})
}
