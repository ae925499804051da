package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/adapter/http/middleware"
	"github.com/iho/tableledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status and kind derived from it.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	kind := domain.ErrorKind(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(mapDomainError(err))
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Kind:    string(kind),
		Message: err.Error(),
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch domain.ErrorKind(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindAlreadyCategorized, domain.KindAlreadyReconciled, domain.KindConflict:
		return http.StatusConflict
	case domain.KindPeriodClosed:
		return http.StatusLocked
	case domain.KindUnbalanced, domain.KindUnknownAccount, domain.KindSplitMismatch,
		domain.KindAmountMismatch, domain.KindCrossRestaurant, domain.KindInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseDateQuery parses a YYYY-MM-DD query parameter, defaulting to today.
func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return domain.DateOf(time.Now()), nil
	}
	return dto.ParseDate(val)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// principal returns the caller, writing a 401 when none is attached.
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no principal on request")
	}
	return p, ok
}

// requireQuery returns a mandatory query parameter, writing a 400 when absent.
func requireQuery(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val := r.URL.Query().Get(key)
	if val == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter", key)
		return "", false
	}
	return val, true
}
