package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
)

// defaultRunGrace is added to the profile duration to bound a run even when
// the engine process is unresponsive.
const defaultRunGrace = 30 * time.Second

// RunStats receives execution instrumentation. Implemented by the prometheus
// metrics in observability; a nil value disables instrumentation.
type RunStats interface {
	RunStarted()
	RunFinished(status string, code string, seconds float64)
}

// ExecutionCoordinator orchestrates a single run per test id: it claims
// exclusivity through the store's compare-and-set, invokes the external
// engine, and persists the outcome. Distinct ids may run concurrently.
type ExecutionCoordinator struct {
	tests  LoadTestRepository
	engine EngineRunner
	events Events
	logger *zerolog.Logger
	stats  RunStats
	grace  time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// wg tracks in-flight runs for Wait-based shutdown.
	wg sync.WaitGroup
}

func NewExecutionCoordinator(tests LoadTestRepository, engine EngineRunner, events Events, logger *zerolog.Logger, stats RunStats, grace time.Duration) *ExecutionCoordinator {
	if events == nil {
		events = NopEvents{}
	}
	if grace <= 0 {
		grace = defaultRunGrace
	}
	return &ExecutionCoordinator{
		tests:   tests,
		engine:  engine,
		events:  events,
		logger:  logger,
		stats:   stats,
		grace:   grace,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Execute claims the record and starts one run in the background. A second
// caller racing on the same id gets ErrAlreadyRunning and causes no state
// change. The run itself outlives the caller's context; its deadline derives
// from the profile duration plus the grace margin.
func (c *ExecutionCoordinator) Execute(ctx context.Context, id string) error {
	t, ok, err := c.tests.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if t.Status == domain.StatusRunning {
		return ErrAlreadyRunning
	}

	if err := c.tests.SetStatus(ctx, id, domain.StatusRunning, t.Status); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return ErrAlreadyRunning
		}
		return err
	}
	c.events.Publish(TestEvent{Type: "status", ID: id, Status: domain.StatusRunning})

	// detached from the caller's context: once the claim is won the start
	// entry must land even if the requester disconnects
	c.appendLog(context.Background(), id, domain.LogEntry{
		Level:   domain.LogInfo,
		Message: "execution started",
		Data: map[string]any{
			"virtualUsers": t.Options.VirtualUsers,
			"duration":     t.Options.Duration,
		},
	})

	runCtx, cancel := context.WithTimeout(context.Background(), c.runDeadline(t.Options))
	c.mu.Lock()
	c.cancels[id] = cancel
	c.mu.Unlock()

	if c.stats != nil {
		c.stats.RunStarted()
	}
	c.wg.Add(1)
	go c.run(runCtx, cancel, t)
	return nil
}

// Cancel signals the engine of a running execution to stop. The run goroutine
// persists the failed status with code Cancelled and appends the log entry.
func (c *ExecutionCoordinator) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	cancel, ok := c.cancels[id]
	c.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	_, found, err := c.tests.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return ErrNotRunning
}

// Wait blocks until all in-flight runs settle. Used on shutdown.
func (c *ExecutionCoordinator) Wait() { c.wg.Wait() }

func (c *ExecutionCoordinator) run(ctx context.Context, cancel context.CancelFunc, t domain.LoadTest) {
	started := time.Now()
	defer func() {
		cancel()
		c.mu.Lock()
		delete(c.cancels, t.ID)
		c.mu.Unlock()
		c.wg.Done()
	}()

	raw, err := c.engine.Run(ctx, t.Script, t.Options)
	if err != nil {
		c.fail(t.ID, classify(ctx, err), err, time.Since(started))
		return
	}

	dm := report.Normalize(raw)
	res := report.BuildResult(t.Options, dm, time.Now().UTC())
	score := report.Score(res)

	// Detached context: the outcome must persist even if every caller is gone.
	pctx := context.Background()
	if _, err := c.tests.SetResult(pctx, t.ID, res, domain.StatusCompleted); err != nil {
		if c.logger != nil {
			c.logger.Error().Err(err).Str("id", t.ID).Msg("persist result failed")
		}
		return
	}
	c.events.Publish(TestEvent{Type: "status", ID: t.ID, Status: domain.StatusCompleted})
	c.appendLog(pctx, t.ID, domain.LogEntry{
		Level:   domain.LogInfo,
		Message: "execution completed",
		Data: map[string]any{
			"score":              score,
			"requestsPerSecond":  res.RequestsPerSecond,
			"failureRatePercent": res.FailureRatePercent,
		},
	})
	if c.logger != nil {
		c.logger.Info().Str("id", t.ID).Int("score", score).
			Float64("rps", res.RequestsPerSecond).Msg("load test completed")
	}
	if c.stats != nil {
		c.stats.RunFinished(string(domain.StatusCompleted), "", time.Since(started).Seconds())
	}
}

// fail persists the failure durably before anything is surfaced: one atomic
// error-log append flips the record to failed and records errorDetails.
func (c *ExecutionCoordinator) fail(id string, code ErrorCode, cause error, elapsed time.Duration) {
	details := &domain.ErrorDetails{
		Name:    string(code),
		Message: cause.Error(),
		Code:    string(code),
	}
	ctx := context.Background()
	c.appendLog(ctx, id, domain.LogEntry{
		Level:   domain.LogError,
		Message: failMessage(code),
		Error:   details,
	})
	c.events.Publish(TestEvent{Type: "status", ID: id, Status: domain.StatusFailed})
	if c.logger != nil {
		c.logger.Error().Err(cause).Str("id", id).Str("code", string(code)).Msg("load test failed")
	}
	if c.stats != nil {
		c.stats.RunFinished(string(domain.StatusFailed), string(code), elapsed.Seconds())
	}
}

func (c *ExecutionCoordinator) appendLog(ctx context.Context, id string, e domain.LogEntry) {
	e.ID = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	if _, err := c.tests.AppendLog(ctx, id, e); err != nil && c.logger != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("append log failed")
	}
	c.events.Publish(TestEvent{Type: "log", ID: id})
}

func (c *ExecutionCoordinator) runDeadline(o domain.RunOptions) time.Duration {
	d, err := time.ParseDuration(o.Duration)
	if err != nil || d <= 0 {
		d = time.Minute
	}
	return d + c.grace
}

// classify maps an engine failure to the taxonomy: context deadline means the
// run outlived duration+grace, caller cancellation is Cancelled, anything
// else is the engine's own fault.
func classify(ctx context.Context, err error) ErrorCode {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeEngineError
	}
}

func failMessage(code ErrorCode) string {
	switch code {
	case CodeTimeout:
		return "execution timed out"
	case CodeCancelled:
		return "execution cancelled"
	default:
		return "execution failed"
	}
}
