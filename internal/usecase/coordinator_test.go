package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/storage/memory"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

// fakeEngine is a scriptable EngineRunner. With block set it parks until the
// run context ends, which is how cancellation and timeout paths are driven.
type fakeEngine struct {
	mu      sync.Mutex
	block   bool
	err     error
	summary report.RawSummary
	calls   atomic.Int32
}

func (f *fakeEngine) Run(ctx context.Context, script string, opts domain.RunOptions) (report.RawSummary, error) {
	f.calls.Add(1)
	f.mu.Lock()
	block, err, summary := f.block, f.err, f.summary
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (f *fakeEngine) set(block bool, err error) {
	f.mu.Lock()
	f.block, f.err = block, err
	f.mu.Unlock()
}

func goodSummary(t *testing.T) report.RawSummary {
	t.Helper()
	doc, err := report.ParseSummary([]byte(`{
		"checks": {"rate": 0.99},
		"success": {"rate": 0.99},
		"http_req_failed": {"rate": 0.01},
		"requests": {"rate": 42.5, "trend": {"avg": 120, "p95": 300}},
		"iterations": {"count": 1275, "trend": {"avg": 1120}},
		"data_received": {"count": 2048},
		"data_sent": {"count": 512}
	}`))
	require.NoError(t, err)
	return doc
}

type recorder struct {
	mu     sync.Mutex
	events []usecase.TestEvent
}

func (r *recorder) Publish(ev usecase.TestEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) statuses(id string) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Status
	for _, ev := range r.events {
		if ev.ID == id && ev.Type == "status" {
			out = append(out, ev.Status)
		}
	}
	return out
}

func setup(t *testing.T, engine usecase.EngineRunner, grace time.Duration) (*memory.Store, *usecase.LoadTestService, *usecase.ExecutionCoordinator, *recorder) {
	t.Helper()
	store := memory.NewStore()
	rec := &recorder{}
	logger := zerolog.Nop()
	svc := usecase.NewLoadTestService(store, nil, rec)
	coord := usecase.NewExecutionCoordinator(store, engine, rec, &logger, nil, grace)
	return store, svc, coord, rec
}

func create(t *testing.T, svc *usecase.LoadTestService, duration string) domain.LoadTest {
	t.Helper()
	created, err := svc.Create(context.Background(), usecase.CreateParams{
		Name:     "orders burst",
		Snapshot: &domain.RequestSnapshot{Method: "GET", URL: "https://api.example.com/orders"},
		Options:  domain.RunOptions{VirtualUsers: 5, Duration: duration},
	})
	require.NoError(t, err)
	return created
}

func waitStatus(t *testing.T, store *memory.Store, id string, want domain.Status) domain.LoadTest {
	t.Helper()
	var got domain.LoadTest
	require.Eventually(t, func() bool {
		lt, ok, err := store.Get(context.Background(), id)
		if err != nil || !ok {
			return false
		}
		got = lt
		return lt.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return got
}

func TestExecute_CompletesAndPersistsResult(t *testing.T) {
	engine := &fakeEngine{summary: goodSummary(t)}
	store, svc, coord, rec := setup(t, engine, time.Second)
	lt := create(t, svc, "10ms")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusCompleted)
	require.NotNil(t, got.Result)
	require.InDelta(t, 42.5, got.Result.RequestsPerSecond, 1e-9)
	require.InDelta(t, 1.0, got.Result.FailureRatePercent, 1e-9)
	require.InDelta(t, 120.0, got.Result.AverageResponseTimeMs, 1e-9)
	require.NotNil(t, got.Result.DetailedMetrics)
	require.InDelta(t, 99.0, got.Result.DetailedMetrics.SuccessRatePercent, 1e-9)
	require.Nil(t, got.ErrorDetails)
	require.Equal(t, 92, report.Score(*got.Result))

	// timeline: started then completed
	require.GreaterOrEqual(t, len(got.Logs), 2)
	require.Equal(t, "execution started", got.Logs[0].Message)
	require.Equal(t, domain.LogInfo, got.Logs[0].Level)
	last := got.Logs[len(got.Logs)-1]
	require.Equal(t, "execution completed", last.Message)
	require.Equal(t, 92, last.Data["score"])

	require.Equal(t, []domain.Status{domain.StatusRunning, domain.StatusCompleted}, rec.statuses(lt.ID))
}

// ctxStrictRepo refuses writes on a dead context, the way the sqlite store
// does, so tests can catch log appends tied to a request context.
type ctxStrictRepo struct {
	*memory.Store
}

func (r *ctxStrictRepo) AppendLog(ctx context.Context, id string, e domain.LogEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.Store.AppendLog(ctx, id, e)
}

func TestExecute_StartLogSurvivesCallerDisconnect(t *testing.T) {
	store := memory.NewStore()
	repo := &ctxStrictRepo{Store: store}
	rec := &recorder{}
	logger := zerolog.Nop()
	svc := usecase.NewLoadTestService(repo, nil, rec)
	coord := usecase.NewExecutionCoordinator(repo, &fakeEngine{summary: goodSummary(t)}, rec, &logger, nil, time.Second)
	lt := create(t, svc, "10ms")

	// the requester is already gone by the time the claim is won
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, coord.Execute(ctx, lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusCompleted)
	require.GreaterOrEqual(t, len(got.Logs), 2)
	require.Equal(t, "execution started", got.Logs[0].Message)
}

func TestExecute_EngineFailureIsDurable(t *testing.T) {
	engine := &fakeEngine{err: errors.New("k6: engine exited: exit status 1")}
	store, svc, coord, _ := setup(t, engine, time.Second)
	lt := create(t, svc, "10ms")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusFailed)
	require.Nil(t, got.Result)
	require.NotNil(t, got.ErrorDetails)
	require.Equal(t, string(usecase.CodeEngineError), got.ErrorDetails.Code)
	require.Contains(t, got.ErrorDetails.Message, "exit status 1")

	last := got.Logs[len(got.Logs)-1]
	require.Equal(t, domain.LogError, last.Level)
	require.Equal(t, "execution failed", last.Message)
	require.NotNil(t, last.Error)
}

func TestExecute_NotFound(t *testing.T) {
	_, _, coord, _ := setup(t, &fakeEngine{}, time.Second)
	err := coord.Execute(context.Background(), "missing")
	require.ErrorIs(t, err, usecase.ErrNotFound)
	require.Equal(t, usecase.CodeNotFound, usecase.CodeOf(err))
}

func TestExecute_RejectsSecondRun(t *testing.T) {
	engine := &fakeEngine{block: true}
	store, svc, coord, _ := setup(t, engine, time.Minute)
	lt := create(t, svc, "10m")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))

	err := coord.Execute(context.Background(), lt.ID)
	require.ErrorIs(t, err, usecase.ErrAlreadyRunning)

	// the losing attempt left no trace
	got, _, _ := store.Get(context.Background(), lt.ID)
	require.Equal(t, domain.StatusRunning, got.Status)
	require.Equal(t, int32(1), engine.calls.Load())

	require.NoError(t, coord.Cancel(context.Background(), lt.ID))
	coord.Wait()
}

func TestExecute_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	engine := &fakeEngine{block: true}
	_, svc, coord, _ := setup(t, engine, time.Minute)
	lt := create(t, svc, "10m")

	const n = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			switch err := coord.Execute(context.Background(), lt.ID); {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, usecase.ErrAlreadyRunning):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(n-1), conflicts.Load())
	require.Equal(t, int32(1), engine.calls.Load())

	require.NoError(t, coord.Cancel(context.Background(), lt.ID))
	coord.Wait()
}

func TestCancel_RunningExecution(t *testing.T) {
	engine := &fakeEngine{block: true}
	store, svc, coord, rec := setup(t, engine, time.Minute)
	lt := create(t, svc, "10m")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	require.NoError(t, coord.Cancel(context.Background(), lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusFailed)
	require.Nil(t, got.Result)
	require.NotNil(t, got.ErrorDetails)
	require.Equal(t, string(usecase.CodeCancelled), got.ErrorDetails.Code)

	// timeline: the start entry plus the cancellation entry
	require.GreaterOrEqual(t, len(got.Logs), 2)
	last := got.Logs[len(got.Logs)-1]
	require.Equal(t, domain.LogError, last.Level)
	require.Equal(t, "execution cancelled", last.Message)

	require.Equal(t, []domain.Status{domain.StatusRunning, domain.StatusFailed}, rec.statuses(lt.ID))
}

func TestCancel_Idle(t *testing.T) {
	_, svc, coord, _ := setup(t, &fakeEngine{}, time.Second)
	lt := create(t, svc, "10ms")

	err := coord.Cancel(context.Background(), lt.ID)
	require.ErrorIs(t, err, usecase.ErrNotRunning)
	require.Equal(t, usecase.CodeNotRunning, usecase.CodeOf(err))

	err = coord.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestExecute_TimeoutAfterGrace(t *testing.T) {
	engine := &fakeEngine{block: true}
	store, svc, coord, _ := setup(t, engine, 50*time.Millisecond)
	lt := create(t, svc, "10ms")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusFailed)
	require.NotNil(t, got.ErrorDetails)
	require.Equal(t, string(usecase.CodeTimeout), got.ErrorDetails.Code)
	last := got.Logs[len(got.Logs)-1]
	require.Equal(t, "execution timed out", last.Message)
}

func TestExecute_RerunAfterTerminal(t *testing.T) {
	engine := &fakeEngine{summary: goodSummary(t)}
	store, svc, coord, _ := setup(t, engine, time.Second)
	lt := create(t, svc, "10ms")

	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	coord.Wait()
	waitStatus(t, store, lt.ID, domain.StatusCompleted)

	// second attempt: engine now fails, prior result must not survive
	engine.set(false, errors.New("engine crashed"))
	require.NoError(t, coord.Execute(context.Background(), lt.ID))
	coord.Wait()

	got := waitStatus(t, store, lt.ID, domain.StatusFailed)
	require.Nil(t, got.Result)
	require.NotNil(t, got.ErrorDetails)
	require.Equal(t, string(usecase.CodeEngineError), got.ErrorDetails.Code)
	require.Equal(t, int32(2), engine.calls.Load())
}
