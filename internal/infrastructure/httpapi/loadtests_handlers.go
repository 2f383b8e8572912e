package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
	"github.com/lordgrimx/WebAPITestUI-sub002/pkg/shared/redact"
)

// testView is the API shape of a record: the stored aggregate plus the
// derived score and with auth material masked.
type testView struct {
	domain.LoadTest
	Score *int `json:"score,omitempty"`
}

func viewOf(t domain.LoadTest) testView {
	t.Snapshot = redact.Snapshot(t.Snapshot)
	t.Script = redact.Script(t.Script)
	v := testView{LoadTest: t}
	if t.Result != nil {
		s := report.Score(*t.Result)
		v.Score = &s
	}
	return v
}

type createRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	RequestID   string                  `json:"requestId"`
	Snapshot    *domain.RequestSnapshot `json:"requestSnapshot"`
	Options     domain.RunOptions       `json:"options"`
}

func (d *Deps) handleLoadTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		d.handleCreate(w, r)
	case http.MethodGet:
		d.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or POST", nil)
	}
}

func (d *Deps) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	t, err := d.Svc.Create(r.Context(), usecase.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		RequestID:   req.RequestID,
		Snapshot:    req.Snapshot,
		Options:     req.Options,
	})
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	d.Logger.Info().Str("id", t.ID).Str("url", t.Snapshot.URL).Msg("load test created")
	writeJSON(w, http.StatusCreated, viewOf(t))
}

func (d *Deps) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	f := usecase.ListFilter{Q: r.URL.Query().Get("q"), Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.Status(raw)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "BAD_STATUS", "unknown status "+raw, nil)
			return
		}
		f.Status = &st
	}
	items, total, err := d.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error(), nil)
		return
	}
	views := make([]testView, 0, len(items))
	for _, t := range items {
		views = append(views, viewOf(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views, "total": total})
}

func (d *Deps) handleLoadTestByID(w http.ResponseWriter, r *http.Request) {
	// path: /api/loadtests/{id}[/(execute|cancel|logs|script)]
	path := strings.TrimPrefix(r.URL.Path, "/api/loadtests/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			d.handleGet(w, r, id)
		case http.MethodDelete:
			d.handleDelete(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or DELETE", nil)
		}
		return
	}
	switch parts[1] {
	case "execute":
		d.handleExecute(w, r, id)
	case "cancel":
		d.handleCancel(w, r, id)
	case "logs":
		d.handleLogs(w, r, id)
	case "script":
		d.handleScript(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	}
}

func (d *Deps) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	t, err := d.Svc.Get(r.Context(), id)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (d *Deps) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := d.Svc.Delete(r.Context(), id); err != nil {
		writeUsecaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecute starts one run. A concurrent double-submission is answered
// with 409 and leaves the record untouched.
func (d *Deps) handleExecute(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
		return
	}
	if err := d.Coord.Execute(r.Context(), id); err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": domain.StatusRunning})
}

func (d *Deps) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
		return
	}
	if err := d.Coord.Cancel(r.Context(), id); err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "cancelling": true})
}

func (d *Deps) handleLogs(w http.ResponseWriter, r *http.Request, id string) {
	t, err := d.Svc.Get(r.Context(), id)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	logs := make([]domain.LogEntry, len(t.Logs))
	for i, e := range t.Logs {
		e.Data = redact.Map(e.Data)
		logs[i] = e
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs, "total": len(logs)})
}

// handleScript returns the generated script for the UI's script-preview
// pane, with credential headers masked.
func (d *Deps) handleScript(w http.ResponseWriter, r *http.Request, id string) {
	t, err := d.Svc.Get(r.Context(), id)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(redact.Script(t.Script)))
}
