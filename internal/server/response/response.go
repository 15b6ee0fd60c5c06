// Package response writes the gateway's JSON envelope. Successful responses
// carry "success": true plus named fields; failures carry "success": false,
// a message and, for unexpected errors, the underlying error text.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
)

// Fields are the named members of an envelope.
type Fields map[string]any

// JSON writes body with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(body)
}

func envelope(success bool, message string, fields Fields) Fields {
	out := make(Fields, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["success"] = success
	if message != "" {
		out["message"] = message
	}
	return out
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, fields Fields) {
	JSON(w, status, envelope(true, message, fields))
}

// OK writes a 200 envelope with fields.
func OK(w http.ResponseWriter, fields Fields) {
	Success(w, http.StatusOK, "", fields)
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, message string, fields Fields) {
	Success(w, http.StatusCreated, message, fields)
}

// Message writes a 200 envelope carrying only a message.
func Message(w http.ResponseWriter, message string) {
	Success(w, http.StatusOK, message, nil)
}

// Fail writes a failure envelope.
func Fail(w http.ResponseWriter, status int, message string, fields Fields) {
	JSON(w, status, envelope(false, message, fields))
}

// Error maps err to a status code and writes it. fallback is the message used
// for unexpected errors, whose text is exposed under "error".
func Error(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		notReady     *errors.NotReadyError
		validation   *errors.ValidationError
		exists       *errors.AlreadyExistsError
		unauthorized *errors.UnauthorizedError
		forbidden    *errors.ForbiddenError
		notFound     *errors.NotFoundError
	)
	switch {
	case errors.As(err, &notReady):
		Fail(w, http.StatusBadRequest, notReady.Message, Fields{"status": notReady.Status})
	case errors.As(err, &validation):
		Fail(w, http.StatusBadRequest, validation.Message, nil)
	case errors.As(err, &exists):
		Fail(w, http.StatusBadRequest, exists.Error(), nil)
	case errors.As(err, &unauthorized):
		Fail(w, http.StatusUnauthorized, unauthorized.Message, nil)
	case errors.As(err, &forbidden):
		Fail(w, http.StatusForbidden, forbidden.Message, nil)
	case errors.As(err, &notFound):
		Fail(w, http.StatusNotFound, notFound.Resource+" not found", nil)
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg(fallback)
		Fail(w, http.StatusInternalServerError, fallback, Fields{"error": err.Error()})
	}
}
