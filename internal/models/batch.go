package models

import "time"

// BatchRecord is the summary of one processed batch kept in the in-memory
// recent-batches buffer. Not persisted; lost on restart.
type BatchRecord struct {
	BatchID     string    `json:"request_id"`
	Cities      []string  `json:"cities"` // cities that succeeded
	Timestamp   float64   `json:"timestamp"`
	RequestedAt time.Time `json:"requested_at"`
}

// BatchResult is the aggregate outcome of a ProcessBatch call.
type BatchResult struct {
	Success         bool     `json:"success"`
	BatchID         string   `json:"request_id"`
	RequestedCities []string `json:"requested_cities"`
	SucceededCities int      `json:"successful_cities"`
	FailedCities    int      `json:"failed_cities"`
	Errors          []string `json:"errors"`
	Timestamp       float64  `json:"timestamp"`
}
