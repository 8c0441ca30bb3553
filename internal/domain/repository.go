package domain

import "context"

// AccountRepository is the persistence port for the account aggregate.
type AccountRepository interface {
	// AllocateID produces a globally unique identifier for an account that
	// has not been persisted yet.
	AllocateID(ctx context.Context) (string, error)

	// Save persists the given aggregates atomically: either every aggregate
	// lands or none do. Each aggregate's in-memory version is compared against
	// the stored version; any mismatch fails the whole batch with
	// ErrConcurrencyConflict and leaves the store untouched. On success the
	// stored and in-memory versions advance by one per aggregate.
	Save(ctx context.Context, accounts ...*Account) error

	// FindByID loads a single aggregate, ErrNotFound if absent.
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByIDs loads the subset of aggregates that exist; missing ids are
	// not an error.
	FindByIDs(ctx context.Context, ids []string) ([]*Account, error)

	// FindByName loads every account carrying the given display name.
	FindByName(ctx context.Context, name string) ([]*Account, error)
}
