package domain

import "fmt"

// RemittanceService moves funds between two aggregates as a single logical
// operation. It performs no I/O: both aggregates are mutated in memory and the
// enclosing command handler must persist them together in one atomic save.
type RemittanceService struct{}

func NewRemittanceService() *RemittanceService {
	return &RemittanceService{}
}

// Remit withdraws from sender, then deposits into receiver. If the withdrawal
// fails the deposit is never attempted, so neither aggregate changes and
// neither buffers an event.
func (s *RemittanceService) Remit(sender, receiver *Account, amount int64, senderSecret string) error {
	if sender.ID() == receiver.ID() {
		return fmt.Errorf("sender and receiver are the same account: %w", ErrInvariantViolation)
	}
	// Checked up front: once the sender is debited the deposit must not be
	// able to fail, or the pair would be left inconsistent.
	if receiver.IsClosed() {
		return fmt.Errorf("receiver %s is closed: %w", receiver.ID(), ErrInvariantViolation)
	}
	if err := sender.Withdraw(amount, senderSecret); err != nil {
		return err
	}
	return receiver.Deposit(amount)
}
