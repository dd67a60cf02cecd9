package models

import (
	"math"
	"time"
)

// DateLayout is the layout of metric bucket dates
const DateLayout = "2006-01-02"

// MetricEvent is one usage observation emitted by a driver
type MetricEvent struct {
	Date         string  `json:"date"`
	Client       string  `json:"client"`
	Driver       string  `json:"driver"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	IsSuccessful bool    `json:"is_successful"`
	Cost         float64 `json:"cost"`
}

// Today returns the current UTC date in bucket format
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}

// MetricBucket is the daily rollup for one (date, client, driver, model) key
type MetricBucket struct {
	ID                 int64     `json:"id" db:"id"`
	Date               string    `json:"date" db:"date"`
	Client             string    `json:"client" db:"client"`
	Driver             string    `json:"driver" db:"driver"`
	Model              string    `json:"model" db:"model"`
	SuccessfulRequests int64     `json:"successful_requests" db:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests" db:"failed_requests"`
	TotalRequests      int64     `json:"total_requests" db:"total_requests"`
	InputTokens        int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens       int64     `json:"output_tokens" db:"output_tokens"`
	TotalTokens        int64     `json:"total_tokens" db:"total_tokens"`
	TotalCost          float64   `json:"total_cost" db:"total_cost"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the default table name for MetricBucket
func (MetricBucket) TableName() string {
	return "llm_metrics"
}

// NewMetricBucket creates the first bucket for an event's key
func NewMetricBucket(event MetricEvent) *MetricBucket {
	now := time.Now().UTC()
	b := &MetricBucket{
		Date:          event.Date,
		Client:        event.Client,
		Driver:        event.Driver,
		Model:         event.Model,
		TotalRequests: 1,
		InputTokens:   int64(event.InputTokens),
		OutputTokens:  int64(event.OutputTokens),
		TotalTokens:   int64(event.TotalTokens),
		TotalCost:     event.Cost,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if event.IsSuccessful {
		b.SuccessfulRequests = 1
	} else {
		b.FailedRequests = 1
	}
	return b
}

// MetricFilter narrows bucket listings
type MetricFilter struct {
	From   string
	To     string
	Client string
	Driver string
	Model  string
	Limit  int
	Offset int
}

// MetricsSummary aggregates buckets for dashboards
type MetricsSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	InputTokens        int64   `json:"input_tokens"`
	OutputTokens       int64   `json:"output_tokens"`
	TotalTokens        int64   `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
}

// SuccessRate returns the percentage of successful requests rounded to one decimal
func (s MetricsSummary) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	rate := float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
	return math.Round(rate*10) / 10
}
