package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

type apiErrorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string, details interface{}) {
	if code == "" {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{Error: apiError{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeUsecaseError maps the orchestration error taxonomy onto HTTP statuses.
func writeUsecaseError(w http.ResponseWriter, err error) {
	switch usecase.CodeOf(err) {
	case usecase.CodeNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case usecase.CodeAlreadyRunning:
		writeError(w, http.StatusConflict, "ALREADY_RUNNING", err.Error(), nil)
	case usecase.CodeNotRunning:
		writeError(w, http.StatusConflict, "NOT_RUNNING", err.Error(), nil)
	case usecase.CodeInvalidSnapshot:
		writeError(w, http.StatusBadRequest, "INVALID_SNAPSHOT", err.Error(), nil)
	default:
		if errors.Is(err, usecase.ErrInvalidOptions) {
			writeError(w, http.StatusBadRequest, "INVALID_OPTIONS", err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
