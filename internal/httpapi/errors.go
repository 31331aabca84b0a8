package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"nmtd/internal/orchestrator"
	"nmtd/internal/queue"
	"nmtd/pkg/types"
)

// HTTPError allows an internal error to carry its own HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string, retryAfterSec int) {
	if retryAfterSec > 0 {
		w.Header().Set("Retry-After", itoa(retryAfterSec))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, RetryAfterSec: retryAfterSec})
}

// mapAcquireError maps a queue.Gate.Acquire error to (status, retryAfterSec),
// per spec.md §4.10 / §7's error->status table.
func mapAcquireError(err error) (status int, retryAfterSec int) {
	var overflow *queue.QueueOverflowError
	switch {
	case errors.As(err, &overflow):
		return http.StatusTooManyRequests, int(overflow.RetryAfterSec + 0.5)
	case errors.Is(err, queue.ErrServiceBusy):
		return http.StatusServiceUnavailable, 0
	case errors.Is(err, queue.ErrTimeout):
		return http.StatusGatewayTimeout, 0
	default:
		return http.StatusInternalServerError, 0
	}
}

// mapItemError maps a per-item orchestrator failure to an HTTP status
// (400 for an unsupported pair, 502 otherwise). itemErrorMessage uses it
// to label every failed item in metadata.errors, whatever ALIGN_RESPONSES
// is set to.
func mapItemError(err error) int {
	if errors.Is(err, orchestrator.ErrUnsupportedPair) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// itemErrorMessage formats a per-item orchestrator failure for
// metadata.errors, keeping the item's original index visible even when
// AlignResponses=false drops it and shortens translated/translations
// below len(items).
func itemErrorMessage(index int, err error) string {
	return fmt.Sprintf("item %d (status %d): %s", index, mapItemError(err), err)
}
