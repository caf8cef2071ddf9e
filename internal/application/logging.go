package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/camp-occupancy/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// principalAttrs returns the logging attributes identifying the acting principal.
func principalAttrs(principal Principal) []any {
	role := ""
	if principal.Role != nil {
		role = principal.Role.Name()
	}
	return []any{"principal_id", principal.UserID, "role", role}
}

// ErrorKind maps sentinel, typed and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrAccessUndetermined):
		return "access_undetermined"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var cErr *CollectionError
	if errors.As(err, &cErr) {
		if cErr.Timeout {
			return "collection_timeout"
		}
		return "collection_failure"
	}
	var sErr *ScopeError
	if errors.As(err, &sErr) {
		return "scope"
	}
	var iErr *InvalidationError
	if errors.As(err, &iErr) {
		return "invalidation_failure"
	}

	return "unexpected"
}
