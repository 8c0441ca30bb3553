// Package command hosts the write-side use cases. Each method is one
// transaction boundary: load the aggregate(s), run the domain operation,
// persist every touched aggregate in a single atomic save, and only then
// drain the buffered domain events into the dispatcher. A failure at any step
// leaves no persisted state and emits no events.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/events"
	"github.com/kestrelbank/ledger-service/internal/metrics"
)

type AccountCommandService struct {
	repo       domain.AccountRepository
	remittance *domain.RemittanceService
	dispatcher *events.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewAccountCommandService(
	repo domain.AccountRepository,
	remittance *domain.RemittanceService,
	dispatcher *events.Dispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AccountCommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountCommandService{
		repo:       repo,
		remittance: remittance,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

// OpenAccount allocates an identity, opens a fresh aggregate and persists it.
// It is the only command that returns state: the caller needs the new id.
func (s *AccountCommandService) OpenAccount(ctx context.Context, cmd OpenAccountCommand) (*domain.Account, error) {
	start := time.Now()
	id, err := s.repo.AllocateID(ctx)
	if err != nil {
		return nil, s.observe("open", start, err)
	}
	account := domain.NewAccount(id, cmd.Name)
	if err := account.Open(cmd.Secret); err != nil {
		return nil, s.observe("open", start, err)
	}
	if err := s.persistAndFlush(ctx, account); err != nil {
		return nil, s.observe("open", start, err)
	}
	return account, s.observe("open", start, nil)
}

func (s *AccountCommandService) Deposit(ctx context.Context, cmd DepositCommand) error {
	start := time.Now()
	account, err := s.repo.FindByID(ctx, cmd.AccountID)
	if err != nil {
		return s.observe("deposit", start, err)
	}
	if err := account.Deposit(cmd.Amount); err != nil {
		return s.observe("deposit", start, err)
	}
	return s.observe("deposit", start, s.persistAndFlush(ctx, account))
}

func (s *AccountCommandService) Withdraw(ctx context.Context, cmd WithdrawCommand) error {
	start := time.Now()
	account, err := s.repo.FindByID(ctx, cmd.AccountID)
	if err != nil {
		return s.observe("withdraw", start, err)
	}
	if err := account.Withdraw(cmd.Amount, cmd.Secret); err != nil {
		return s.observe("withdraw", start, err)
	}
	return s.observe("withdraw", start, s.persistAndFlush(ctx, account))
}

// Remit moves funds between two accounts. Both aggregates ride in the same
// save call, so either both balances land or neither does.
func (s *AccountCommandService) Remit(ctx context.Context, cmd RemitCommand) error {
	start := time.Now()
	accounts, err := s.repo.FindByIDs(ctx, []string{cmd.SenderID, cmd.ReceiverID})
	if err != nil {
		return s.observe("remit", start, err)
	}
	byID := make(map[string]*domain.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID()] = account
	}
	sender, ok := byID[cmd.SenderID]
	if !ok {
		return s.observe("remit", start, fmt.Errorf("sender %s: %w", cmd.SenderID, domain.ErrNotFound))
	}
	receiver, ok := byID[cmd.ReceiverID]
	if !ok {
		return s.observe("remit", start, fmt.Errorf("receiver %s: %w", cmd.ReceiverID, domain.ErrNotFound))
	}
	if err := s.remittance.Remit(sender, receiver, cmd.Amount, cmd.SenderSecret); err != nil {
		return s.observe("remit", start, err)
	}
	return s.observe("remit", start, s.persistAndFlush(ctx, sender, receiver))
}

func (s *AccountCommandService) UpdatePassword(ctx context.Context, cmd UpdatePasswordCommand) error {
	start := time.Now()
	account, err := s.repo.FindByID(ctx, cmd.AccountID)
	if err != nil {
		return s.observe("update_password", start, err)
	}
	if err := account.UpdatePassword(cmd.CurrentSecret, cmd.NewSecret); err != nil {
		return s.observe("update_password", start, err)
	}
	return s.observe("update_password", start, s.persistAndFlush(ctx, account))
}

func (s *AccountCommandService) CloseAccount(ctx context.Context, cmd CloseAccountCommand) error {
	start := time.Now()
	account, err := s.repo.FindByID(ctx, cmd.AccountID)
	if err != nil {
		return s.observe("close", start, err)
	}
	if err := account.Close(cmd.Secret); err != nil {
		return s.observe("close", start, err)
	}
	return s.observe("close", start, s.persistAndFlush(ctx, account))
}

// persistAndFlush is the commit half of every command: one atomic save of all
// touched aggregates, then drain each buffer into the dispatcher. Events flow
// only after the save succeeded.
func (s *AccountCommandService) persistAndFlush(ctx context.Context, accounts ...*domain.Account) error {
	if err := s.repo.Save(ctx, accounts...); err != nil {
		return err
	}
	for _, account := range accounts {
		if drained := account.Commit(); len(drained) > 0 {
			s.dispatcher.Dispatch(ctx, drained...)
		}
	}
	return nil
}

func (s *AccountCommandService) observe(command string, start time.Time, err error) error {
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			s.metrics.ConcurrencyConflict()
		}
		s.metrics.CommandFailed(command, failureReason(err))
		s.logger.Warn("command failed", "command", command, "error", err)
		return err
	}
	s.metrics.CommandProcessed(command, time.Since(start))
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, domain.ErrTransportUnavailable):
		return "transport_unavailable"
	default:
		return "internal"
	}
}
