package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/storage/memory"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

type fakeSource struct {
	snapshots map[string]domain.RequestSnapshot
}

func (f *fakeSource) Snapshot(ctx context.Context, requestID string) (domain.RequestSnapshot, bool, error) {
	s, ok := f.snapshots[requestID]
	return s, ok, nil
}

func newService(t *testing.T, source usecase.SnapshotSource) (*memory.Store, *usecase.LoadTestService) {
	t.Helper()
	store := memory.NewStore()
	return store, usecase.NewLoadTestService(store, source, nil)
}

func TestCreate_InlineSnapshot(t *testing.T) {
	ctx := context.Background()
	store, svc := newService(t, nil)

	lt, err := svc.Create(ctx, usecase.CreateParams{
		Name:        "  checkout burst  ",
		Description: "peak hour profile",
		Snapshot:    &domain.RequestSnapshot{Method: "post", URL: "https://shop.example.com/checkout", Body: `{"sku":"x"}`},
		Options:     domain.RunOptions{VirtualUsers: 20, Duration: "1m"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, lt.ID)
	require.Equal(t, "checkout burst", lt.Name)
	require.Equal(t, domain.StatusCreated, lt.Status)
	require.Contains(t, lt.Script, "vus: 20,")
	require.Contains(t, lt.Script, `http.request("POST", url,`)
	require.NotNil(t, lt.Logs)
	require.Empty(t, lt.Logs)
	require.False(t, lt.CreatedAt.IsZero())

	stored, ok, err := store.Get(ctx, lt.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lt.Script, stored.Script)
}

func TestCreate_DefaultName(t *testing.T) {
	_, svc := newService(t, nil)
	lt, err := svc.Create(context.Background(), usecase.CreateParams{
		Snapshot: &domain.RequestSnapshot{Method: "GET", URL: "https://api.example.com/users"},
		Options:  domain.RunOptions{VirtualUsers: 1, Duration: "10s"},
	})
	require.NoError(t, err)
	require.Equal(t, "GET https://api.example.com/users", lt.Name)
}

func TestCreate_Validation(t *testing.T) {
	_, svc := newService(t, nil)
	ctx := context.Background()
	snap := &domain.RequestSnapshot{Method: "GET", URL: "https://x.test"}

	_, err := svc.Create(ctx, usecase.CreateParams{
		Snapshot: snap,
		Options:  domain.RunOptions{VirtualUsers: 0, Duration: "10s"},
	})
	require.ErrorIs(t, err, usecase.ErrInvalidOptions)

	_, err = svc.Create(ctx, usecase.CreateParams{
		Snapshot: snap,
		Options:  domain.RunOptions{VirtualUsers: 5, Duration: "soon"},
	})
	require.ErrorIs(t, err, usecase.ErrInvalidOptions)

	_, err = svc.Create(ctx, usecase.CreateParams{
		Snapshot: &domain.RequestSnapshot{URL: "https://x.test"},
		Options:  domain.RunOptions{VirtualUsers: 5, Duration: "10s"},
	})
	require.Equal(t, usecase.CodeInvalidSnapshot, usecase.CodeOf(err))

	// neither inline snapshot nor request reference
	_, err = svc.Create(ctx, usecase.CreateParams{
		Options: domain.RunOptions{VirtualUsers: 5, Duration: "10s"},
	})
	require.Equal(t, usecase.CodeInvalidSnapshot, usecase.CodeOf(err))
}

func TestCreate_ByRequestReference(t *testing.T) {
	source := &fakeSource{snapshots: map[string]domain.RequestSnapshot{
		"req-1": {Method: "GET", URL: "https://api.example.com/saved"},
	}}
	_, svc := newService(t, source)
	ctx := context.Background()

	lt, err := svc.Create(ctx, usecase.CreateParams{
		RequestID: "req-1",
		Options:   domain.RunOptions{VirtualUsers: 2, Duration: "10s"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/saved", lt.Snapshot.URL)

	_, err = svc.Create(ctx, usecase.CreateParams{
		RequestID: "unknown",
		Options:   domain.RunOptions{VirtualUsers: 2, Duration: "10s"},
	})
	require.Equal(t, usecase.CodeNotFound, usecase.CodeOf(err))
}

func TestService_GetListDelete(t *testing.T) {
	ctx := context.Background()
	_, svc := newService(t, nil)

	first, err := svc.Create(ctx, usecase.CreateParams{
		Name:     "one",
		Snapshot: &domain.RequestSnapshot{Method: "GET", URL: "https://x.test/1"},
		Options:  domain.RunOptions{VirtualUsers: 1, Duration: "10s"},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, usecase.CreateParams{
		Name:     "two",
		Snapshot: &domain.RequestSnapshot{Method: "GET", URL: "https://x.test/2"},
		Options:  domain.RunOptions{VirtualUsers: 1, Duration: "10s"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "one", got.Name)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, usecase.ErrNotFound)

	items, total, err := svc.List(ctx, usecase.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "two", items[0].Name)

	require.NoError(t, svc.Delete(ctx, first.ID))
	require.ErrorIs(t, svc.Delete(ctx, first.ID), usecase.ErrNotFound)
}

func TestService_AppendLogFillsDefaults(t *testing.T) {
	ctx := context.Background()
	store, svc := newService(t, nil)
	lt, err := svc.Create(ctx, usecase.CreateParams{
		Snapshot: &domain.RequestSnapshot{Method: "GET", URL: "https://x.test"},
		Options:  domain.RunOptions{VirtualUsers: 1, Duration: "10s"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.AppendLog(ctx, lt.ID, domain.LogEntry{Level: domain.LogInfo, Message: "note"}))
	require.ErrorIs(t, svc.AppendLog(ctx, "missing", domain.LogEntry{Message: "x"}), usecase.ErrNotFound)

	got, _, _ := store.Get(ctx, lt.ID)
	require.Len(t, got.Logs, 1)
	require.NotEmpty(t, got.Logs[0].ID)
	require.False(t, got.Logs[0].Timestamp.IsZero())
}
