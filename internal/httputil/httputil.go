package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// WriteError renders err as {"error": code, "message": msg}. Internal and
// upstream causes are logged and replaced with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	msg := apperr.MessageOf(err)

	logger := logging.FromContext(r.Context())
	if !apperr.Exposed(code) {
		logger.ErrorContext(r.Context(), "request failed", "code", code, "error", err)
		code = apperr.CodeInternal
		msg = "internal error"
	} else {
		logger.InfoContext(r.Context(), "request rejected", "code", code, "message", msg)
	}

	WriteJSON(w, r, status, errorBody{Error: code, Message: msg})
}

// DecodeJSON reads a JSON body into dst. Unknown fields are ignored.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.New(apperr.CodeValidation, "request body required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.CodeValidation, "request body required")
		}
		return apperr.Wrap(err, apperr.CodeValidation, "invalid JSON body")
	}
	return nil
}
