// Package memory holds load-test records in process memory. The store is the
// single source of truth for status transitions: SetStatus is compare-and-set
// under one lock, which is what serialises concurrent execute attempts.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

type Store struct {
	mu sync.RWMutex
	// insertion order of test ids; listing walks it backwards
	order []string
	items map[string]*domain.LoadTest
}

func NewStore() *Store {
	return &Store{
		order: make([]string, 0, 64),
		items: make(map[string]*domain.LoadTest, 64),
	}
}

func (s *Store) Create(ctx context.Context, t domain.LoadTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t.ID] = clone(&t)
	s.order = append(s.order, t.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.LoadTest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.items[id]; ok {
		return *clone(e), true, nil
	}
	return domain.LoadTest{}, false, nil
}

func (s *Store) List(ctx context.Context, f usecase.ListFilter) ([]domain.LoadTest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// newest first: creation order is createdAt order
	results := make([]domain.LoadTest, 0, len(s.items))
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.items[s.order[i]]
		if e == nil {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.Q != "" && !matchQ(e, f.Q) {
			continue
		}
		results = append(results, *clone(e))
	}
	total := len(results)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return results[start:end], total, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// AppendLog appends e and, for an error-level entry, flips the record to
// failed and captures errorDetails in the same critical section so no reader
// ever observes an error log with a stale status.
func (s *Store) AppendLog(ctx context.Context, id string, e domain.LogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return false, nil
	}
	t.Logs = append(t.Logs, cloneLog(e))
	if e.Level == domain.LogError {
		t.Status = domain.StatusFailed
		if e.Error != nil {
			cp := *e.Error
			t.ErrorDetails = &cp
		}
	}
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, to, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return usecase.ErrNotFound
	}
	if t.Status != expected {
		return usecase.ErrStatusConflict
	}
	t.Status = to
	if to == domain.StatusRunning {
		// a fresh attempt owns the record: previous outcome is void
		t.Result = nil
		t.ErrorDetails = nil
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetResult(ctx context.Context, id string, r domain.LoadTestResult, final domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return false, nil
	}
	cp := r
	if r.DetailedMetrics != nil {
		dm := *r.DetailedMetrics
		cp.DetailedMetrics = &dm
	}
	t.Result = &cp
	t.Status = final
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func matchQ(t *domain.LoadTest, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Snapshot.URL), q)
}

// clone deep-copies the mutable sub-documents so callers never alias store
// state.
func clone(t *domain.LoadTest) *domain.LoadTest {
	cp := *t
	cp.Logs = make([]domain.LogEntry, len(t.Logs))
	for i, e := range t.Logs {
		cp.Logs[i] = cloneLog(e)
	}
	if t.Result != nil {
		r := *t.Result
		if t.Result.DetailedMetrics != nil {
			dm := *t.Result.DetailedMetrics
			r.DetailedMetrics = &dm
		}
		cp.Result = &r
	}
	if t.ErrorDetails != nil {
		e := *t.ErrorDetails
		cp.ErrorDetails = &e
	}
	if t.Snapshot.Headers != nil {
		h := make(map[string]string, len(t.Snapshot.Headers))
		for k, v := range t.Snapshot.Headers {
			h[k] = v
		}
		cp.Snapshot.Headers = h
	}
	if t.Snapshot.QueryParams != nil {
		qp := make(map[string]string, len(t.Snapshot.QueryParams))
		for k, v := range t.Snapshot.QueryParams {
			qp[k] = v
		}
		cp.Snapshot.QueryParams = qp
	}
	return &cp
}

func cloneLog(e domain.LogEntry) domain.LogEntry {
	if e.Data != nil {
		d := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			d[k] = v
		}
		e.Data = d
	}
	if e.Error != nil {
		err := *e.Error
		e.Error = &err
	}
	return e
}
