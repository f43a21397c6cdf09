package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
)

// envelope is the JSON body of every response.
type envelope map[string]any

func respond(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var (
		validation *appErrors.ValidationError
		transition *appErrors.TransitionError
		missing    *appErrors.MissingIntermediaryOutputsError
		notFound   *appErrors.NotFoundError
		forbidden  *appErrors.ForbiddenError
		conflict   *appErrors.ConflictError
		upstream   *appErrors.UpstreamProvisioningError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &transition), errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorDetails exposes the structured part of an error so clients can act
// on it without parsing the message.
func errorDetails(err error) map[string]any {
	var (
		validation *appErrors.ValidationError
		transition *appErrors.TransitionError
		missing    *appErrors.MissingIntermediaryOutputsError
		upstream   *appErrors.UpstreamProvisioningError
	)
	switch {
	case errors.As(err, &validation) && validation.Field != "":
		return map[string]any{"field": validation.Field}
	case errors.As(err, &transition):
		return map[string]any{
			"axis":  transition.Axis,
			"from":  transition.From,
			"to":    transition.To,
			"unmet": transition.Unmet,
		}
	case errors.As(err, &missing):
		return map[string]any{"missing": missing.Missing}
	case errors.As(err, &upstream):
		return map[string]any{
			"operation":   upstream.Operation,
			"status_code": upstream.StatusCode,
			"detail":      upstream.Detail,
		}
	}
	return nil
}

func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	body := envelope{"success": false, "error": err.Error()}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		body["error"] = "internal server error"
	} else if details := errorDetails(err); details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
