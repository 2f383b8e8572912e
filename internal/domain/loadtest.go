package domain

import "time"

// Status is the lifecycle state of a LoadTest record.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status allows a new execution attempt.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AuthType values understood by the script generator. Anything else behaves
// like AuthNone.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// RequestSnapshot is an immutable copy of a saved request definition, taken
// once at LoadTest creation. The live request store is never re-read.
type RequestSnapshot struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	AuthType    string            `json:"authType,omitempty"`
	AuthToken   string            `json:"authToken,omitempty"`
}

// RunOptions is the concurrency/duration profile of a run.
type RunOptions struct {
	VirtualUsers int    `json:"virtualUsers"`
	Duration     string `json:"duration"` // e.g. "30s", "1m"
}

// ErrorDetails captures a failure durably on the record.
type ErrorDetails struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Code    string `json:"code,omitempty"`
}

// LoadTest is the aggregate root. Logs and result are sub-documents of the
// record so per-test history stays atomic with its status.
type LoadTest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Snapshot     RequestSnapshot `json:"requestSnapshot"`
	Script       string          `json:"script"`
	Options      RunOptions      `json:"options"`
	Status       Status          `json:"status"`
	Result       *LoadTestResult `json:"result,omitempty"`
	Logs         []LogEntry      `json:"logs"`
	ErrorDetails *ErrorDetails   `json:"errorDetails,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
