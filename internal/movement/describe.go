package movement

import (
	"fmt"
	"strings"
)

// Default descriptions used when the caller leaves one blank.

const (
	DepositDescription    = "Deposit"
	WithdrawalDescription = "Withdrawal"
)

func InternalTransferTo(account string) string {
	return "Internal transfer to " + account
}

func InternalTransferFrom(account string) string {
	return "Internal transfer from " + account
}

func TransferTo(name, account string) string {
	if name == "" {
		return "Transfer to " + account
	}
	return fmt.Sprintf("Transfer to %s (%s)", name, account)
}

func TransferFrom(name, account string) string {
	if name == "" {
		return "Transfer from " + account
	}
	return fmt.Sprintf("Transfer from %s (%s)", name, account)
}

// ExternalSent always carries the destination details; reason is appended when given.
func ExternalSent(name, bank, account, reason string) string {
	return withReason(fmt.Sprintf("Transfer sent to %s (Bank: %s, Account: %s).", name, bank, account), reason)
}

func ExternalReceived(sender, account, reason string) string {
	return withReason(fmt.Sprintf("Transfer received from %s (Account: %s).", sender, account), reason)
}

func withReason(s, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return s + " Reason: " + reason
	}
	return s
}
