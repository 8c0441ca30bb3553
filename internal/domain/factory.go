package domain

// NewAccount creates a fresh, unopened aggregate with a zero balance. No
// events are produced; the account only becomes usable after Open.
func NewAccount(id, name string) *Account {
	return &Account{id: id, name: name}
}

// Reconstitute rebuilds an aggregate from its persisted snapshot. The pending
// event buffer starts empty: rehydration is not a state change.
func Reconstitute(s Snapshot) *Account {
	return &Account{
		id:             s.ID,
		name:           s.Name,
		credentialHash: s.CredentialHash,
		balance:        s.Balance,
		openedAt:       s.OpenedAt,
		updatedAt:      s.UpdatedAt,
		closedAt:       s.ClosedAt,
		version:        s.Version,
	}
}
