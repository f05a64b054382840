package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haneul-ai/recall/internal/model"
)

// ErrorResponse is the standard error envelope for every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code alongside a message.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeBusy           = "BUSY"
	ErrCodeDegraded       = "DEGRADED_WRITE"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// writeJSON encodes data as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message, RequestID: requestID}})
}

// writeEngineError maps an Engine Facade error's Kind to an HTTP status
// and code, falling back to 500 for anything unrecognized.
func writeEngineError(w http.ResponseWriter, err error, requestID string) {
	kind, ok := model.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalServer, err.Error(), requestID)
		return
	}

	switch kind {
	case model.KindNotFound:
		writeError(w, http.StatusNotFound, ErrCodeNotFound, errMessage(err), requestID)
	case model.KindInvalidInput:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, errMessage(err), requestID)
	case model.KindConflict:
		writeError(w, http.StatusConflict, ErrCodeConflict, errMessage(err), requestID)
	case model.KindBusy:
		writeError(w, http.StatusTooManyRequests, ErrCodeBusy, errMessage(err), requestID)
	case model.KindDegradedWrite:
		writeError(w, http.StatusAccepted, ErrCodeDegraded, errMessage(err), requestID)
	case model.KindEmbedderUnavailable, model.KindIndexCorrupt:
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalServer, errMessage(err), requestID)
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalServer, errMessage(err), requestID)
	}
}

func errMessage(err error) string {
	var me *model.Error
	if errors.As(err, &me) {
		return me.Error()
	}
	return err.Error()
}
