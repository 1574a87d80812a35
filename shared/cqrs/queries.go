package cqrs

import (
	"time"

	"github.com/hyprbank/ledger/shared/models"
)

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by account number.
type GetAccountQuery struct {
	AccountNumber    string
	RequestingUserID int64
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID int64
}

// ---------- Movement queries ----------

// MovementHistoryQuery lists movements across all accounts of a user.
// StartDate and EndDate are inclusive calendar dates; zero values disable the range.
type MovementHistoryQuery struct {
	UserID    int64
	StartDate time.Time
	EndDate   time.Time
	Type      models.MovementType
	Limit     int
}
