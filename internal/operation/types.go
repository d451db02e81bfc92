// Package operation implements the Operation lifecycle: the DS and RPC
// operation types the transaction coordinator drives through init /
// execute / freeResources.
package operation

import (
	"context"
	"log/slog"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

// Result is the per-operation outcome the coordinator collects, common
// to both DS and RPC operations.
type Result struct {
	Kind            envelope.Kind
	Status          int
	Data            any
	StartRow        int
	EndRow          int
	TotalRows       int
	AffectedRows    int
	InvalidateCache bool
	Errors          map[string]string
	IsDSResponse    bool
	Stacktrace      string
}

// Operation is the capability set the TransactionCoordinator drives.
// Execute never returns a Go error: every failure during the execute
// phase is captured as a failure Result, matching // "execute all, per-operation errors become error responses" policy.
// Init may fail, stopping the whole transaction; FreeResources is best-effort and never surfaces an error to
// the coordinator.
type Operation interface {
	Init() error
	Execute(ctx context.Context) *Result
	FreeResources()
}

// statusFor maps an error to a Response status:
// AppErrors map through their Kind; any other error is a generic
// failure.
func statusFor(err error) int {
	if err == nil {
		return 0
	}
	if ae, ok := err.(*apperrors.AppError); ok {
		return ae.Kind.Status()
	}
	return -1
}

func withStacktrace(result *Result, err error, includeStacktrace bool, logger *slog.Logger) *Result {
	if err != nil && logger != nil {
		logger.Error("operation failed", "error", err)
	}
	if includeStacktrace && err != nil {
		result.Stacktrace = err.Error()
	}
	return result
}
