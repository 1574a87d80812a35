package cqrs

import "github.com/shopspring/decimal"

// DepositCommand credits an account. AsAdmin skips the ownership check.
type DepositCommand struct {
	AccountNumber string
	Amount        decimal.Decimal
	Description   string
	UserID        int64
	AsAdmin       bool
}

type WithdrawalCommand struct {
	AccountNumber string
	Amount        decimal.Decimal
	Description   string
	UserID        int64
}

// TransferCommand is shared by internal and user-to-user transfers.
type TransferCommand struct {
	OriginAccountNumber      string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	Description              string
	UserID                   int64
}

type ExternalTransferCommand struct {
	OriginAccountNumber      string
	DestinationName          string
	DestinationBank          string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	Description              string
	UserID                   int64
}
