package models

import "time"

// AggregationRun is one audited aggregation (outcome and counts only).
type AggregationRun struct {
	ID             string    `json:"id"`
	DealID         string    `json:"deal_id"`
	Surface        string    `json:"surface"` // http, function, grpc
	Success        bool      `json:"success"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Message        string    `json:"message,omitempty"`
	TotalFound     int       `json:"total_found"`
	TotalFormatted int       `json:"total_formatted"`
	ProductsFound  int       `json:"products_found"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
