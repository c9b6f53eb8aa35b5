// Package ingestion defines the request and response types of the HTTP
// ingest endpoint and the Kafka event it produces for the indexer.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingest endpoint. Each
// document maps field names to values.
type IngestRequest struct {
	Documents []map[string]any `json:"documents"`
}

type IngestResponse struct {
	Collection string `json:"collection"`
	Accepted   int    `json:"accepted"`
	Status     string `json:"status"`
}

// IngestEvent is one document on the ingest topic.
type IngestEvent struct {
	Collection string         `json:"collection"`
	Document   map[string]any `json:"document"`
	IngestedAt time.Time      `json:"ingested_at,omitempty"`
}
