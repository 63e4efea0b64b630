package metrics

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RecordDBOperation records document store operation metrics consistently
// table: backing table (e.g., "accounts", "linked_identities")
// operation: operation name (e.g., "create", "replace", "delete", "get", "find", "list")
// duration: time taken for the operation
// rowsReturned: number of documents returned (-1 if not applicable)
// err: error from the operation (nil if successful)
func RecordDBOperation(table, operation string, duration time.Duration, rowsReturned int64, err error) {
	ms := float64(duration.Milliseconds())
	DBDuration.WithLabelValues(table, operation).Observe(ms)

	if rowsReturned >= 0 {
		DBRowsReturned.WithLabelValues(table, operation).Observe(float64(rowsReturned))
	}

	status := "success"
	if err != nil {
		status = "error"
		DBErrors.WithLabelValues(table, operation, classifyDBError(err)).Inc()
	}
	DBOperations.WithLabelValues(table, operation, status).Inc()
}

// RecordProviderCall records an outbound identity provider call
func RecordProviderCall(provider, operation string, duration time.Duration, err error) {
	ProviderDuration.WithLabelValues(provider, operation).Observe(float64(duration.Milliseconds()))

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	ProviderCalls.WithLabelValues(provider, operation, outcome).Inc()
}

// classifyDBError categorizes database errors for metrics
func classifyDBError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "conflict") || strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique constraint"):
		return "duplicate"
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
		return "connection"
	case strings.Contains(errStr, "constraint"):
		return "constraint"
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "syntax"):
		return "syntax"
	default:
		return "other"
	}
}
