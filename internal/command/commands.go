package command

// Commands are plain parameter objects; one per account use case. Amounts are
// integral minor currency units.

type OpenAccountCommand struct {
	Name   string
	Secret string
}

type DepositCommand struct {
	AccountID string
	Amount    int64
}

type WithdrawCommand struct {
	AccountID string
	Amount    int64
	Secret    string
}

type RemitCommand struct {
	SenderID     string
	ReceiverID   string
	Amount       int64
	SenderSecret string
}

type UpdatePasswordCommand struct {
	AccountID     string
	CurrentSecret string
	NewSecret     string
}

type CloseAccountCommand struct {
	AccountID string
	Secret    string
}
