package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
	"github.com/lordgrimx/WebAPITestUI-sub002/pkg/shared/redact"
)

// handleTestStream provides Server-Sent Events for one record: a catch-up of
// existing logs followed by live log/status events from the monitor bus.
// Path: /api/loadtests_stream/{id}
func (d *Deps) handleTestStream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/loadtests_stream/")
	if id == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	t, err := d.Svc.Get(r.Context(), id)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "stream unsupported", nil)
		return
	}

	sub := d.Monitor.Subscribe()
	defer d.Monitor.Unsubscribe(sub)

	writeSSE(w, flusher, "status", map[string]any{"id": id, "status": t.Status})
	sent := 0
	sent += d.streamNewLogs(w, flusher, r, id, sent)
	lastStatus := t.Status

	// the monitor bus drops events for slow consumers, so a poll ticker
	// backstops missed log/status updates
	interval := time.Duration(d.Cfg.SSEPollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-poll.C:
			sent += d.streamNewLogs(w, flusher, r, id, sent)
			cur, err := d.Svc.Get(r.Context(), id)
			if err != nil {
				if usecase.CodeOf(err) == usecase.CodeNotFound {
					writeSSE(w, flusher, "deleted", map[string]any{"id": id})
					return
				}
				continue
			}
			if cur.Status != lastStatus {
				lastStatus = cur.Status
				writeSSE(w, flusher, "status", map[string]any{"id": id, "status": cur.Status})
			}
		case ev, open := <-sub:
			if !open || ev.ID != id {
				if !open {
					return
				}
				continue
			}
			switch ev.Type {
			case "log":
				sent += d.streamNewLogs(w, flusher, r, id, sent)
			case "status":
				lastStatus = ev.Status
				writeSSE(w, flusher, "status", ev)
			case "deleted":
				writeSSE(w, flusher, "deleted", ev)
				return
			}
		}
	}
}

// streamNewLogs emits log entries past the already-sent prefix; logs are
// append-only so the prefix count is a stable cursor.
func (d *Deps) streamNewLogs(w http.ResponseWriter, flusher http.Flusher, r *http.Request, id string, sent int) int {
	t, err := d.Svc.Get(r.Context(), id)
	if err != nil || sent >= len(t.Logs) {
		return 0
	}
	fresh := t.Logs[sent:]
	out := make([]domain.LogEntry, len(fresh))
	for i, e := range fresh {
		e.Data = redact.Map(e.Data)
		out[i] = e
	}
	writeSSE(w, flusher, "logs", out)
	return len(out)
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: " + event + "\ndata: "))
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}
