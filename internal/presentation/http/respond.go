package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidRequest, "request body is required", err)
		}
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidRequest, "request body is not valid JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers with the client-safe message and reason of err. The raw
// error only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	logger := logctx.FromOr(r.Context(), nil)
	fields := []observability.Field{
		observability.F("status", status),
		observability.F("reason", apperr.Kind(err)),
		observability.F("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("http_request_failed", fields...)
	} else {
		logger.Warn("http_request_rejected", fields...)
	}
	writeJSON(w, status, errorResponse{Error: apperr.Message(err), Code: apperr.Kind(err)})
}
