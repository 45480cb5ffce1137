package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as coded, user-friendly messages
//   - Rendered as JSON for API routes and as an HTML page otherwise
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err), optionally with a fallback status
//  3. Error is mapped via catalog.MapError to get the user message
//  4. Technical error + context is logged with the request ID
//  5. User message is rendered in the format the client expects

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/logging"
	"github.com/JonMunkholm/grapher/internal/table"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks an HTTP status for err, falling back to fallback for
// errors the catalog and table packages do not name.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, catalog.ErrDatasetNotFound), errors.Is(err, table.ErrColumnNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDatasetExists):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, catalog.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, table.ErrMissingColumns),
		errors.Is(err, table.ErrInvalidSpec),
		errors.Is(err, table.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return fallback
}

// respondError logs err and writes its user message. The status comes from
// statusFor, with a 500 fallback unless one is given.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallback ...int) {
	status := http.StatusInternalServerError
	if len(fallback) > 0 {
		status = fallback[0]
	}
	status = statusFor(err, status)

	userMsg := catalog.MapError(err)
	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsJSON(r) {
		writeJSONStatus(w, status, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := errorPage(userMsg, status).Render(r.Context(), w); err != nil {
		logger.Error("render error page", "error", err)
	}
}

// respondBadRequest reports a malformed request that never reached the catalog.
func respondBadRequest(w http.ResponseWriter, msg string) {
	writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
		Error:   msg,
		Message: msg,
		Action:  "Check the request parameters and try again",
		Code:    "REQ001",
	})
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
