package models

import "time"

const DateLayout = "2006-01-02"

// AccountView is the read-optimised projection of an account.
// OwnerID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
	AccountNumber string    `json:"accountNumber"`
	OwnerID       int64     `json:"-"`
	AccountType   string    `json:"accountType"`
	Status        string    `json:"status"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"createdTimestamp"`
}

// AccountsSummary is the dashboard listing of a user's accounts.
type AccountsSummary struct {
	Accounts     []AccountView `json:"accounts"`
	TotalBalance string        `json:"totalBalance"`
}

// AdminAccountView exposes the owner, which AccountView deliberately hides.
type AdminAccountView struct {
	AccountView
	OwnerID   int64  `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}

type MovementView struct {
	ID            int64        `json:"id"`
	AccountNumber string       `json:"accountNumber"`
	Date          string       `json:"date"`
	Description   string       `json:"description"`
	Type          MovementType `json:"type"`
	Amount        string       `json:"amount"`
}

type AdminMovementView struct {
	MovementView
	OwnerName string `json:"ownerName"`
}

type MovementResult struct {
	Message    string       `json:"message"`
	Movement   MovementView `json:"movement"`
	NewBalance string       `json:"newBalance"`
}

type TransferResult struct {
	Message          string         `json:"message"`
	Movements        []MovementView `json:"movements"`
	NewOriginBalance string         `json:"newOriginBalance"`
}

type ExternalTransferResult struct {
	Message            string         `json:"message"`
	NewOriginBalance   string         `json:"newOriginBalance"`
	LastOriginMovement MovementView   `json:"lastOriginMovement"`
	RecentMovements    []MovementView `json:"recentMovements"`
}

func NewAccountView(a *Account) AccountView {
	return AccountView{
		AccountNumber: a.AccountNumber,
		OwnerID:       a.OwnerID,
		AccountType:   a.AccountType,
		Status:        a.Status,
		Balance:       a.Balance.StringFixed(2),
		CreatedAt:     a.CreatedAt,
	}
}

func NewMovementView(m *Movement) MovementView {
	return MovementView{
		ID:            m.ID,
		AccountNumber: m.AccountNumber,
		Date:          m.Date.Format(DateLayout),
		Description:   m.Description,
		Type:          m.Type,
		Amount:        m.Amount.StringFixed(2),
	}
}

func NewMovementViews(ms []Movement) []MovementView {
	views := make([]MovementView, len(ms))
	for i := range ms {
		views[i] = NewMovementView(&ms[i])
	}
	return views
}
