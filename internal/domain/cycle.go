package domain

import "time"

type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

// SiteStatus is the per-source outcome of one cycle.
type SiteStatus struct {
	Source  string      `json:"site"`
	Count   int         `json:"count"`
	Outcome Outcome     `json:"status"`
	Message string      `json:"message,omitempty"`
	Method  FetchMethod `json:"method"`
	// Set when auto mode fell back to the rendered fetcher.
	Escalated bool `json:"escalated,omitempty"`
}

type PricePoint struct {
	Price      int64     `json:"price"`
	ObservedAt time.Time `json:"date"`
}

type EnrichedListing struct {
	Listing
	PriceHistory []PricePoint `json:"priceHistory"`
}

type CycleResult struct {
	TotalResults int               `json:"totalResults"`
	SiteStatuses []SiteStatus      `json:"siteStatuses"`
	Results      []EnrichedListing `json:"results"`
	LastUpdate   time.Time         `json:"lastUpdate"`
	Duration     time.Duration     `json:"-"`
}

// FetchAttempt records one fetch made by the strategy selector.
type FetchAttempt struct {
	Source   string        `db:"site_name"`
	Method   FetchMethod   `db:"method"`
	Success  bool          `db:"success"`
	Count    int           `db:"result_count"`
	Duration time.Duration `db:"-"`
	Error    string        `db:"error_message"`
	At       time.Time     `db:"created_at"`
}

type SiteStats struct {
	Source             string      `json:"site_name" db:"site_name"`
	Method             FetchMethod `json:"method" db:"method"`
	TotalRequests      int64       `json:"total_requests" db:"total_requests"`
	SuccessfulRequests int64       `json:"successful_requests" db:"successful_requests"`
	AvgResponseTimeMs  float64     `json:"avg_response_time" db:"avg_response_time"`
}
