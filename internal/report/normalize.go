// Package report translates the external engine's loosely-typed summary into
// the strongly-typed result model and derives the performance score. It is
// the single point of contact with the engine's wire format.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
)

// RawSummary is the engine's metrics document, keyed by metric name. Values
// stay opaque until Normalize parses them; anything unparseable counts as
// absent.
type RawSummary map[string]json.RawMessage

// absentSize is reported for byte counters the engine did not emit.
const absentSize = "N/A"

type rawTrend struct {
	Avg *float64 `json:"avg"`
	Min *float64 `json:"min"`
	Med *float64 `json:"med"`
	Max *float64 `json:"max"`
	P90 *float64 `json:"p90"`
	P95 *float64 `json:"p95"`
}

type rawMetric struct {
	Rate  *float64  `json:"rate"`
	Count *float64  `json:"count"`
	Trend *rawTrend `json:"trend"`
}

// ParseSummary decodes an engine output document. Both a bare keyed document
// and a k6-style {"metrics": {...}} wrapper are accepted.
func ParseSummary(data []byte) (RawSummary, error) {
	var wrapped struct {
		Metrics RawSummary `json:"metrics"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Metrics) > 0 {
		return wrapped.Metrics, nil
	}
	var doc RawSummary
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil, fmt.Errorf("report: malformed summary document: %w", err)
	}
	return doc, nil
}

// Normalize converts doc into canonical DetailedMetrics. It never fails:
// missing or malformed metrics degrade to zero values and byte-size fields to
// "N/A". The failed-request fraction stays 0-1; percentage conversion belongs
// to presentation.
func Normalize(doc RawSummary) domain.DetailedMetrics {
	requests := metric(doc, "requests")
	iterations := metric(doc, "iterations")

	dm := domain.DetailedMetrics{
		ChecksRatePercent:         rate(doc, "checks") * 100,
		DataReceived:              sizeField(doc, "data_received"),
		DataSent:                  sizeField(doc, "data_sent"),
		HTTPRequestRatePerSec:     value(requests.Rate),
		HTTPRequestFailedFraction: clamp01(rate(doc, "http_req_failed")),
		SuccessRatePercent:        rate(doc, "success") * 100,
		IterationCount:            int64(value(iterations.Count)),
		HTTPRequestDuration:       trend(requests.Trend),
		IterationDuration:         trend(iterations.Trend),
	}
	return dm
}

// BuildResult assembles the run result from the profile and normalized
// metrics. The transport-level failure percentage is derived here, outside
// the normalizer.
func BuildResult(opts domain.RunOptions, dm domain.DetailedMetrics, now time.Time) domain.LoadTestResult {
	return domain.LoadTestResult{
		VirtualUsers:          opts.VirtualUsers,
		Duration:              opts.Duration,
		RequestsPerSecond:     dm.HTTPRequestRatePerSec,
		FailureRatePercent:    dm.HTTPRequestFailedFraction * 100,
		AverageResponseTimeMs: dm.HTTPRequestDuration.Avg,
		P95ResponseTimeMs:     dm.HTTPRequestDuration.P95,
		Timestamp:             now,
		DetailedMetrics:       &dm,
	}
}

// metric parses doc[name], treating malformed entries as absent.
func metric(doc RawSummary, name string) rawMetric {
	raw, ok := doc[name]
	if !ok {
		return rawMetric{}
	}
	var m rawMetric
	if err := json.Unmarshal(raw, &m); err != nil {
		return rawMetric{}
	}
	return m
}

func rate(doc RawSummary, name string) float64 {
	return value(metric(doc, name).Rate)
}

func sizeField(doc RawSummary, name string) string {
	m := metric(doc, name)
	if m.Count == nil {
		return absentSize
	}
	return formatBytes(*m.Count)
}

func trend(t *rawTrend) domain.Trend {
	if t == nil {
		return domain.Trend{}
	}
	return domain.Trend{
		Avg: value(t.Avg),
		Min: value(t.Min),
		Med: value(t.Med),
		Max: value(t.Max),
		P90: value(t.P90),
		P95: value(t.P95),
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatBytes renders a byte counter with binary (1024) scaling, two
// decimals.
func formatBytes(n float64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", n/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", n/1024)
	default:
		return fmt.Sprintf("%.2f B", n)
	}
}
