package usecase

import (
	"context"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
)

// LoadTestRepository is the single source of truth for records. Status
// transitions must be atomic compare-and-set; AppendLog with an error-level
// entry must flip the record to failed (and copy the entry's error into
// errorDetails) in the same operation.
type LoadTestRepository interface {
	Create(ctx context.Context, t domain.LoadTest) error
	Get(ctx context.Context, id string) (domain.LoadTest, bool, error)
	// List returns records ordered by createdAt descending.
	List(ctx context.Context, f ListFilter) ([]domain.LoadTest, int, error)
	Delete(ctx context.Context, id string) (bool, error)
	// AppendLog appends e to the record's log; the bool is false when the id
	// is unknown.
	AppendLog(ctx context.Context, id string, e domain.LogEntry) (bool, error)
	// SetStatus applies id's status = to only when the current status equals
	// expected. Entering running clears a previous attempt's result and
	// errorDetails. Returns ErrStatusConflict on a CAS miss.
	SetStatus(ctx context.Context, id string, to, expected domain.Status) error
	// SetResult attaches the result and moves the record to final in one step.
	SetResult(ctx context.Context, id string, r domain.LoadTestResult, final domain.Status) (bool, error)
}

type ListFilter struct {
	Q      string // substring match on name/url
	Status *domain.Status
	Limit  int
	Offset int
}

// EngineRunner is the opaque external load-generation engine. Run blocks for
// the duration of the run; the context carries the deadline and caller
// cancellation. The returned summary is consumed only by the normalizer.
type EngineRunner interface {
	Run(ctx context.Context, script string, opts domain.RunOptions) (report.RawSummary, error)
}

// SnapshotSource is the read-only boundary with the request-definition store.
type SnapshotSource interface {
	Snapshot(ctx context.Context, requestID string) (domain.RequestSnapshot, bool, error)
}

// Events receives lifecycle notifications for fan-out to live observers
// (WS monitor hub, SSE streams). Implementations must not block.
type Events interface {
	Publish(ev TestEvent)
}

type TestEvent struct {
	Type   string        `json:"type"` // created | status | log | deleted
	ID     string        `json:"id"`
	Status domain.Status `json:"status,omitempty"`
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Publish(TestEvent) {}
