package domain

import (
	"context"
	"errors"
	"log/slog"
)

// ErrorHandler is the single translation point from unexpected Go errors to
// Result errors. Cancellation stays distinguishable from internal failures.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an ErrorHandler. A nil logger falls back to slog.Default().
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// Handle logs err with the operation name and converts it.
func (h *ErrorHandler) Handle(ctx context.Context, op string, err error) Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.InfoContext(ctx, "operation cancelled", "op", op, "error", err)
		return Cancelled(op)
	}
	h.logger.ErrorContext(ctx, "unexpected error", "op", op, "error", err)
	return NewError(Unknown, "an unexpected error occurred").WithDetails(op)
}

// Cancelled is the error reported when the caller's context is done.
func Cancelled(op string) Error {
	return NewError(OperationCancelled, "operation was cancelled").WithDetails(op)
}

// CheckContext returns a cancellation error when ctx is already done.
func CheckContext(ctx context.Context, op string) (Error, bool) {
	if ctx.Err() != nil {
		return Cancelled(op), true
	}
	return Error{}, false
}
