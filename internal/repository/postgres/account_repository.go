// Package postgres implements the account repository against the PostgreSQL
// write store. The multi-aggregate save runs in a single transaction with a
// conditional version update per row, which is what makes cross-account
// remittance safe without locks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// AllocateID asks the database for a UUID so identity allocation shares the
// fate of the backend: if the store is down, the command fails before any
// aggregate is built.
func (r *AccountRepository) AllocateID(ctx context.Context) (string, error) {
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT gen_random_uuid()::text`).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to allocate account id: %v: %w", err, domain.ErrStorageUnavailable)
	}
	return id, nil
}

// Save persists every aggregate in one transaction. A fresh aggregate
// (version 0) is inserted at version 1; a loaded aggregate is updated only
// where the stored version still matches the loaded one. Any miss rolls the
// whole batch back with ErrConcurrencyConflict.
func (r *AccountRepository) Save(ctx context.Context, accounts ...*domain.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v: %w", err, domain.ErrStorageUnavailable)
	}
	defer tx.Rollback()

	for _, account := range accounts {
		if account.Version() == 0 {
			err = r.insert(ctx, tx, account)
		} else {
			err = r.update(ctx, tx, account)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %v: %w", err, domain.ErrStorageUnavailable)
	}
	for _, account := range accounts {
		account.AdvanceVersion()
	}
	return nil
}

func (r *AccountRepository) insert(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	const query = `
		INSERT INTO accounts (id, name, credential_hash, balance, opened_at, updated_at, closed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
	`
	snap := account.Snapshot()
	_, err := tx.ExecContext(ctx, query,
		snap.ID, snap.Name, snap.CredentialHash, snap.Balance,
		snap.OpenedAt, snap.UpdatedAt, snap.ClosedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("account %s already persisted: %w", snap.ID, domain.ErrConcurrencyConflict)
		}
		return fmt.Errorf("failed to insert account %s: %v: %w", snap.ID, err, domain.ErrStorageUnavailable)
	}
	return nil
}

func (r *AccountRepository) update(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	const query = `
		UPDATE accounts
		SET credential_hash = $2, balance = $3, updated_at = $4, closed_at = $5, version = version + 1
		WHERE id = $1 AND version = $6
	`
	snap := account.Snapshot()
	result, err := tx.ExecContext(ctx, query,
		snap.ID, snap.CredentialHash, snap.Balance, snap.UpdatedAt, snap.ClosedAt, snap.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %v: %w", snap.ID, err, domain.ErrStorageUnavailable)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %v: %w", err, domain.ErrStorageUnavailable)
	}
	if rows == 0 {
		return fmt.Errorf("account %s changed since version %d: %w", snap.ID, snap.Version, domain.ErrConcurrencyConflict)
	}
	return nil
}

const selectColumns = `id, name, credential_hash, balance, opened_at, updated_at, closed_at, version`

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE id = $1`
	snap, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %v: %w", id, err, domain.ErrStorageUnavailable)
	}
	return domain.Reconstitute(snap), nil
}

func (r *AccountRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE id = ANY($1)`
	return r.query(ctx, query, pq.Array(ids))
}

func (r *AccountRepository) FindByName(ctx context.Context, name string) ([]*domain.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE name = $1`
	return r.query(ctx, query, name)
}

func (r *AccountRepository) query(ctx context.Context, query string, arg any) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %v: %w", err, domain.ErrStorageUnavailable)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		snap, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %v: %w", err, domain.ErrStorageUnavailable)
		}
		accounts = append(accounts, domain.Reconstitute(snap))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %v: %w", err, domain.ErrStorageUnavailable)
	}
	return accounts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var closedAt sql.NullTime
	err := row.Scan(
		&snap.ID, &snap.Name, &snap.CredentialHash, &snap.Balance,
		&snap.OpenedAt, &snap.UpdatedAt, &closedAt, &snap.Version,
	)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if closedAt.Valid {
		snap.ClosedAt = &closedAt.Time
	}
	return snap, nil
}
