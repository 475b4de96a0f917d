// Package handler provides the HTTP surface of the platform.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"vtu/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps a service error onto the wire format {error, kind} using
// the taxonomy's status mapping.
func respondError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	msg := err.Error()
	if kind == errors.KindInternal {
		msg = "Internal server error"
	}
	respondJSON(w, errors.HTTPStatus(kind), map[string]string{
		"error": msg,
		"kind":  string(kind),
	})
}

func respondValidation(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{
		"error": message,
		"kind":  string(errors.KindValidation),
	})
}

// decodeJSON strictly decodes a request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			respondValidation(w, "Request body is required")
			return false
		}
		respondValidation(w, "Invalid request body")
		return false
	}
	return true
}

// pagination reads limit/offset query params with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
