package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event subjects double as integration-event routing keys.
const (
	AccountOpened   = "account.opened"
	AccountClosed   = "account.closed"
	Deposited       = "account.deposited"
	Withdrawn       = "account.withdrawn"
	PasswordUpdated = "account.password.updated"
)

// Event is a fact recorded by the aggregate when its state changes. Events sit
// in the aggregate's pending buffer until the owning command has persisted the
// new state and drains them with Commit.
type Event struct {
	ID         string            `json:"id"`
	Subject    string            `json:"subject"`
	AccountID  string            `json:"accountId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       map[string]string `json:"data,omitempty"`
}

func newEvent(subject, accountID string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Subject:    subject,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func amountData(amount, balance int64) map[string]string {
	return map[string]string{
		"amount":  strconv.FormatInt(amount, 10),
		"balance": strconv.FormatInt(balance, 10),
	}
}
