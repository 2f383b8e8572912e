package report

import (
	"math"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
)

// Scoring weights and baselines. 50 rps and 0ms average latency are a perfect
// score; 1000ms average latency zeroes the response term.
const (
	failureWeight  = 0.4
	rpsWeight      = 0.3
	responseWeight = 0.3
	rpsBaseline    = 50.0
	msPerPoint     = 10.0
)

// Score derives the 0-100 health score from a run result. Callers must only
// invoke it when a result exists; an absent result means the score is
// undefined, not zero.
func Score(r domain.LoadTestResult) int {
	failureScore := clamp(100-r.FailureRatePercent, 0, 100)
	rpsScore := clamp(r.RequestsPerSecond/rpsBaseline*100, 0, 100)
	responseScore := clamp(100-r.AverageResponseTimeMs/msPerPoint, 0, 100)
	return int(math.Round(failureWeight*failureScore + rpsWeight*rpsScore + responseWeight*responseScore))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
