package domain

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account is the aggregate root of the ledger. All balance and credential
// mutations go through its methods, which enforce every invariant and buffer
// a domain event per successful mutation. An Account instance is owned by the
// single command execution that loaded it and is not safe for concurrent use.
type Account struct {
	id             string
	name           string
	credentialHash string
	balance        int64
	openedAt       time.Time
	updatedAt      time.Time
	closedAt       *time.Time
	version        int64

	// pending holds events produced since the last Commit. Never persisted.
	pending []Event
}

// Snapshot is the persisted record shape of an account.
type Snapshot struct {
	ID             string
	Name           string
	CredentialHash string
	Balance        int64
	OpenedAt       time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
	Version        int64
}

func (a *Account) ID() string             { return a.id }
func (a *Account) Name() string           { return a.name }
func (a *Account) Balance() int64         { return a.balance }
func (a *Account) Version() int64         { return a.version }
func (a *Account) OpenedAt() time.Time    { return a.openedAt }
func (a *Account) UpdatedAt() time.Time   { return a.updatedAt }
func (a *Account) ClosedAt() *time.Time   { return a.closedAt }
func (a *Account) IsOpened() bool         { return !a.openedAt.IsZero() }
func (a *Account) IsClosed() bool         { return a.closedAt != nil }
func (a *Account) PendingEvents() []Event { return a.pending }

// Snapshot returns the current persisted record shape. The pending event
// buffer is deliberately absent.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		ID:             a.id,
		Name:           a.name,
		CredentialHash: a.credentialHash,
		Balance:        a.balance,
		OpenedAt:       a.openedAt,
		UpdatedAt:      a.updatedAt,
		ClosedAt:       a.closedAt,
		Version:        a.version,
	}
}

// Open sets the account credential and opened timestamp. It fails if the
// account was already opened or the secret is empty. bcrypt salts every hash
// independently, so two opens with the same plaintext never store the same
// credential.
func (a *Account) Open(secret string) error {
	if a.IsOpened() {
		return fmt.Errorf("account %s already opened: %w", a.id, ErrInvariantViolation)
	}
	if secret == "" {
		return fmt.Errorf("empty secret: %w", ErrInvariantViolation)
	}
	hash, err := hashSecret(secret)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	a.credentialHash = hash
	a.openedAt = now
	a.updatedAt = now
	a.record(newEvent(AccountOpened, a.id, map[string]string{"name": a.name}))
	return nil
}

// UpdatePassword rotates the credential after verifying the current secret.
func (a *Account) UpdatePassword(currentSecret, newSecret string) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if err := a.authorize(currentSecret); err != nil {
		return err
	}
	if newSecret == "" {
		return fmt.Errorf("empty secret: %w", ErrInvariantViolation)
	}
	hash, err := hashSecret(newSecret)
	if err != nil {
		return err
	}
	a.credentialHash = hash
	a.updatedAt = time.Now().UTC()
	a.record(newEvent(PasswordUpdated, a.id, nil))
	return nil
}

// Deposit credits the balance. Deposits are not credential-gated: anyone who
// knows the account id may pay into it.
func (a *Account) Deposit(amount int64) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if amount < 1 {
		return fmt.Errorf("deposit of %d: %w", amount, ErrInvalidAmount)
	}
	a.balance += amount
	a.updatedAt = time.Now().UTC()
	a.record(newEvent(Deposited, a.id, amountData(amount, a.balance)))
	return nil
}

// Withdraw debits the balance after verifying the secret. The balance never
// goes negative.
func (a *Account) Withdraw(amount int64, secret string) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if err := a.authorize(secret); err != nil {
		return err
	}
	if amount < 1 {
		return fmt.Errorf("withdrawal of %d: %w", amount, ErrInvalidAmount)
	}
	if amount > a.balance {
		return fmt.Errorf("withdrawal of %d exceeds balance %d: %w", amount, a.balance, ErrInsufficientFunds)
	}
	a.balance -= amount
	a.updatedAt = time.Now().UTC()
	a.record(newEvent(Withdrawn, a.id, amountData(amount, a.balance)))
	return nil
}

// Close marks the account terminal. Only an emptied account can close.
func (a *Account) Close(secret string) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if err := a.authorize(secret); err != nil {
		return err
	}
	if a.balance > 0 {
		return fmt.Errorf("balance %d must be zero to close: %w", a.balance, ErrInvariantViolation)
	}
	now := time.Now().UTC()
	a.closedAt = &now
	a.updatedAt = now
	a.record(newEvent(AccountClosed, a.id, nil))
	return nil
}

// Commit drains and returns the pending events, clearing the buffer. Calling
// it with nothing pending returns nil. Command handlers invoke it strictly
// after a successful save.
func (a *Account) Commit() []Event {
	if len(a.pending) == 0 {
		return nil
	}
	events := a.pending
	a.pending = nil
	return events
}

// AdvanceVersion bumps the in-memory version to mirror a successful persisted
// save. Repositories call it; nothing else should.
func (a *Account) AdvanceVersion() {
	a.version++
}

func (a *Account) record(e Event) {
	a.pending = append(a.pending, e)
}

// mutable guards every post-open mutation: a closed account is terminal.
func (a *Account) mutable() error {
	if a.IsClosed() {
		return fmt.Errorf("account %s is closed: %w", a.id, ErrInvariantViolation)
	}
	return nil
}

func (a *Account) authorize(secret string) error {
	if bcrypt.CompareHashAndPassword([]byte(a.credentialHash), []byte(secret)) != nil {
		return fmt.Errorf("account %s: %w", a.id, ErrUnauthorized)
	}
	return nil
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}
