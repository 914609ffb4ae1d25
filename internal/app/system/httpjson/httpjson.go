// internal/app/system/httpjson/httpjson.go

// Package httpjson is the JSON request/response layer shared by all
// feature handlers: body decoding with limits, the success writer, and
// the typed error envelope.
//
// Error envelope:
//
//	{ "error": { "code": "group_full", "message": "…", "request_id": "…" } }
//
// Codes follow the operation error taxonomy: validation failures and
// business-rule precondition rejections map to 4xx with their own code,
// retry-exhausted conflicts map to 409 "conflict", and internal
// consistency violations surface as an opaque 500 "internal".
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Error codes shared across features.
const (
	CodeValidation   = "validation_failed"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInternal     = "internal"
)

const maxBodyBytes = 1 << 20 // 1 MiB; every API body here is tiny

type requestIDKey struct{}

// RequestID assigns a UUID to each request, echoes it in X-Request-ID,
// and makes it available to the error envelope and audit events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID assigned by the RequestID
// middleware, or "" when absent.
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// Decode reads a JSON body into dst, rejecting unknown fields and
// oversized bodies. An empty body decodes into the zero value so that
// endpoints with optional bodies stay simple.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Write encodes v as the JSON response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// Error writes the typed error envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	Write(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(r),
	}})
}

// Internal writes an opaque 500. Detail stays in the logs, never in the
// response.
func Internal(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
}
