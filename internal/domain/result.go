package domain

import "time"

// Trend is a statistical summary of a latency distribution, in milliseconds.
type Trend struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Med float64 `json:"med"`
	Max float64 `json:"max"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

// DetailedMetrics is the canonical form of the engine's raw summary, produced
// only by the metrics normalizer. HTTPRequestFailedFraction stays a 0-1
// fraction here; percentage conversion is presentation-side.
type DetailedMetrics struct {
	ChecksRatePercent         float64 `json:"checksRatePercent"`
	DataReceived              string  `json:"dataReceived"`
	DataSent                  string  `json:"dataSent"`
	HTTPRequestRatePerSec     float64 `json:"httpRequestRatePerSec"`
	HTTPRequestFailedFraction float64 `json:"httpRequestFailedFraction"`
	SuccessRatePercent        float64 `json:"successRatePercent"`
	IterationCount            int64   `json:"iterationCount"`
	HTTPRequestDuration       Trend   `json:"httpRequestDuration"`
	IterationDuration         Trend   `json:"iterationDuration"`
}

// LoadTestResult is attached to a record when a run completes.
type LoadTestResult struct {
	VirtualUsers          int              `json:"virtualUsers"`
	Duration              string           `json:"duration"`
	RequestsPerSecond     float64          `json:"requestsPerSecond"`
	FailureRatePercent    float64          `json:"failureRatePercent"`
	AverageResponseTimeMs float64          `json:"averageResponseTimeMs"`
	P95ResponseTimeMs     float64          `json:"p95ResponseTimeMs"`
	Timestamp             time.Time        `json:"timestamp"`
	DetailedMetrics       *DetailedMetrics `json:"detailedMetrics,omitempty"`
}
