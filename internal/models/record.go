package models

import "time"

// AnalysisRecord is a persisted, normalized analysis with request metadata
type AnalysisRecord struct {
	ID         string        `json:"id" badgerhold:"key"` // ana_{uuid}
	SessionID  string        `json:"session_id"`
	Query      string        `json:"query"` // Company name as entered by the user
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Analysis   StockAnalysis `json:"analysis"`
	CreatedAt  time.Time     `json:"created_at"`
	DurationMs int64         `json:"duration_ms"`
}
