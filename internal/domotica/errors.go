package domotica

import (
	"context"
	"errors"
)

// Sentinel error kinds. Callers classify failures with errors.Is; every
// layer wraps these with fmt.Errorf("%w: ...") so the detail survives.
var (
	// ErrConnection means the browser process could not start or the
	// console was unreachable within the configured timeout.
	ErrConnection = errors.New("domotica: connection failed")

	// ErrAuth covers bad credentials and login-form timeouts. Fatal for
	// the current workflow once the bounded login retries are spent.
	ErrAuth = errors.New("domotica: authentication failed")

	// ErrNavigation means an expected landmark element did not appear
	// within the step timeout.
	ErrNavigation = errors.New("domotica: navigation failed")

	// ErrInvalidState marks an operation called from the wrong
	// navigation state. A programming error, never retried.
	ErrInvalidState = errors.New("domotica: invalid navigation state")

	// ErrNotFound means a referenced mesa, category or product has no
	// matching element.
	ErrNotFound = errors.New("domotica: not found")

	// ErrValidation marks a malformed request, rejected before any DOM
	// interaction.
	ErrValidation = errors.New("domotica: validation failed")

	// ErrSessionBusy reports exclusivity contention under a no-queue
	// acquisition.
	ErrSessionBusy = errors.New("domotica: session busy")

	// ErrStaleElement marks a transient element detach between locating
	// a node and acting on it. Eligible for bounded retry.
	ErrStaleElement = errors.New("domotica: stale element")
)

// Retryable reports whether an error is a transient DOM condition worth
// another bounded attempt. Structural kinds and context cancellation are
// never retryable; masking them as flakiness hides real failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrSessionBusy) {
		return false
	}
	return errors.Is(err, ErrStaleElement) || errors.Is(err, ErrNavigation)
}
