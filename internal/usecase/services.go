package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/script"
)

// ErrInvalidOptions rejects a create call with a non-positive VU count or an
// unparseable duration.
var ErrInvalidOptions = fmt.Errorf("invalid run options")

// LoadTestService owns record lifecycle outside of execution: creation
// (including one-time script generation), lookup, listing, deletion, and log
// appends.
type LoadTestService struct {
	tests  LoadTestRepository
	source SnapshotSource
	events Events
}

func NewLoadTestService(tests LoadTestRepository, source SnapshotSource, events Events) *LoadTestService {
	if events == nil {
		events = NopEvents{}
	}
	return &LoadTestService{tests: tests, source: source, events: events}
}

type CreateParams struct {
	Name        string
	Description string
	// Either an inline snapshot or a request id resolved through the
	// read-only request-definition store.
	Snapshot  *domain.RequestSnapshot
	RequestID string
	Options   domain.RunOptions
}

// Create validates the profile, captures the snapshot, generates the script
// once, and persists the record with status created. The script and snapshot
// are immutable afterwards.
func (s *LoadTestService) Create(ctx context.Context, p CreateParams) (domain.LoadTest, error) {
	if err := validateOptions(p.Options); err != nil {
		return domain.LoadTest{}, err
	}

	snap, err := s.resolveSnapshot(ctx, p)
	if err != nil {
		return domain.LoadTest{}, err
	}

	text, err := script.Generate(snap, p.Options)
	if err != nil {
		return domain.LoadTest{}, ErrInvalidSnapshot
	}

	now := time.Now().UTC()
	t := domain.LoadTest{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		Snapshot:    snap,
		Script:      text,
		Options:     p.Options,
		Status:      domain.StatusCreated,
		Logs:        []domain.LogEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Name == "" {
		t.Name = snap.Method + " " + snap.URL
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return domain.LoadTest{}, err
	}
	s.events.Publish(TestEvent{Type: "created", ID: t.ID, Status: t.Status})
	return t, nil
}

func (s *LoadTestService) resolveSnapshot(ctx context.Context, p CreateParams) (domain.RequestSnapshot, error) {
	if p.Snapshot != nil {
		return *p.Snapshot, nil
	}
	if p.RequestID == "" || s.source == nil {
		return domain.RequestSnapshot{}, ErrInvalidSnapshot
	}
	snap, ok, err := s.source.Snapshot(ctx, p.RequestID)
	if err != nil {
		return domain.RequestSnapshot{}, fmt.Errorf("resolve request %s: %w", p.RequestID, err)
	}
	if !ok {
		return domain.RequestSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *LoadTestService) Get(ctx context.Context, id string) (domain.LoadTest, error) {
	t, ok, err := s.tests.Get(ctx, id)
	if err != nil {
		return domain.LoadTest{}, err
	}
	if !ok {
		return domain.LoadTest{}, ErrNotFound
	}
	return t, nil
}

func (s *LoadTestService) List(ctx context.Context, f ListFilter) ([]domain.LoadTest, int, error) {
	return s.tests.List(ctx, f)
}

// Delete removes the record together with its logs and result.
func (s *LoadTestService) Delete(ctx context.Context, id string) error {
	ok, err := s.tests.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.events.Publish(TestEvent{Type: "deleted", ID: id})
	return nil
}

// AppendLog appends one entry to the record's timeline. An error-level entry
// also marks the record failed, atomically with the append.
func (s *LoadTestService) AppendLog(ctx context.Context, id string, e domain.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	ok, err := s.tests.AppendLog(ctx, id, e)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.events.Publish(TestEvent{Type: "log", ID: id})
	return nil
}

func validateOptions(o domain.RunOptions) error {
	if o.VirtualUsers <= 0 {
		return fmt.Errorf("%w: virtualUsers must be positive", ErrInvalidOptions)
	}
	if _, err := time.ParseDuration(o.Duration); err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidOptions, o.Duration)
	}
	return nil
}
