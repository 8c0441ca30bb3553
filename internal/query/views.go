package query

import (
	"time"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

const viewKeyPrefix = "account:view:"

// AccountView is the read-side projection of an account. Credential material
// never appears here.
type AccountView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Balance   int64      `json:"balance"`
	OpenedAt  time.Time  `json:"openedTimestamp"`
	UpdatedAt time.Time  `json:"updatedTimestamp"`
	ClosedAt  *time.Time `json:"closedTimestamp,omitempty"`
}

// NewAccountView projects the aggregate into its read model.
func NewAccountView(account *domain.Account) *AccountView {
	return &AccountView{
		ID:        account.ID(),
		Name:      account.Name(),
		Balance:   account.Balance(),
		OpenedAt:  account.OpenedAt(),
		UpdatedAt: account.UpdatedAt(),
		ClosedAt:  account.ClosedAt(),
	}
}

func viewKey(accountID string) string {
	return viewKeyPrefix + accountID
}
