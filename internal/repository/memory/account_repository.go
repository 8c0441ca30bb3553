// Package memory provides a mutex-guarded in-process implementation of the
// account repository with the same version semantics as the PostgreSQL
// implementation. It backs the command-service and repository tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Snapshot
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]domain.Snapshot),
	}
}

func (r *AccountRepository) AllocateID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// Save applies the whole batch or none of it. The version check for every
// aggregate runs before the first write, so a conflict anywhere in the batch
// leaves the store untouched.
func (r *AccountRepository) Save(ctx context.Context, accounts ...*domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range accounts {
		stored, exists := r.accounts[account.ID()]
		if !exists {
			if account.Version() != 0 {
				return fmt.Errorf("account %s vanished at version %d: %w",
					account.ID(), account.Version(), domain.ErrConcurrencyConflict)
			}
			continue
		}
		if stored.Version != account.Version() {
			return fmt.Errorf("account %s stored at version %d, loaded at %d: %w",
				account.ID(), stored.Version, account.Version(), domain.ErrConcurrencyConflict)
		}
	}

	for _, account := range accounts {
		snap := account.Snapshot()
		snap.Version++
		r.accounts[account.ID()] = snap
		account.AdvanceVersion()
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return domain.Reconstitute(snap), nil
}

func (r *AccountRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Account
	for _, id := range ids {
		if snap, exists := r.accounts[id]; exists {
			result = append(result, domain.Reconstitute(snap))
		}
	}
	return result, nil
}

func (r *AccountRepository) FindByName(ctx context.Context, name string) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Account
	for _, snap := range r.accounts {
		if snap.Name == name {
			result = append(result, domain.Reconstitute(snap))
		}
	}
	return result, nil
}
