package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/infrastructure/resilience"
)

// classifyNATSError decides retry and breaker accounting for a failed
// publish. Context cancellation is the caller's decision and is neither
// retried nor held against the broker.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isConnectivityError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// isConnectivityError matches the client errors that clear up on their
// own once the broker is reachable again.
func isConnectivityError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected)
}

// wrapTemporaryIfNeeded marks retryable publish failures as ErrTemporary
// so the API maps them to 503 rather than 500.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
