package domain

import "errors"

// Error taxonomy for the account domain. Command handlers and HTTP adapters
// classify failures with errors.Is against these sentinels; lower layers wrap
// them with context via fmt.Errorf("...: %w", ...).
var (
	// ErrUnauthorized means the supplied secret does not match the stored
	// credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAmount means a deposit or withdrawal amount below one minor
	// unit was requested.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds means a withdrawal exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvariantViolation covers business-rule breaches that are neither an
	// authorization nor an amount problem: re-opening an opened account,
	// closing with a nonzero balance, mutating a closed account.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound means no account exists for the given identity.
	ErrNotFound = errors.New("account not found")

	// ErrConcurrencyConflict means the aggregate version read no longer
	// matches the stored version at save time. Callers decide whether to
	// reload and retry; the repository never retries on its own.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStorageUnavailable means the backing store could not serve the
	// request for infrastructural reasons.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransportUnavailable means the event transport could not accept a
	// publish or append within the bounded retry budget.
	ErrTransportUnavailable = errors.New("transport unavailable")
)
