package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"

	"github.com/go-chi/chi/v5"
)

const msgInternal = "something went wrong"

// errorBody is the shape of every error response.
type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err with the status of its kind. Anything that is not a
// classified domain error is logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, msgInternal

	var de *core.Error
	if errors.As(err, &de) && de.StatusCode() != http.StatusInternalServerError {
		status, msg = de.StatusCode(), de.Message
	}

	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, routeOperation(r), fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, status,
			applog.FieldError, err.Error())
	}

	writeJSON(w, status, errorBody{Message: msg, StatusCode: status})
}

// routeOperation names the failing operation after its chi route pattern.
func routeOperation(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return r.Method + " " + p
		}
	}
	return r.Method + " " + r.URL.Path
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg, StatusCode: status})
}
