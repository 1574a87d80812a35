package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	Income  MovementType = "INCOME"
	Expense MovementType = "EXPENSE"
)

// Valid reports whether t is one of the two movement kinds.
func (t MovementType) Valid() bool {
	return t == Income || t == Expense
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	AccountTypeSavings  = "SAVINGS"
	AccountTypeChecking = "CHECKING"

	AccountStatusActive   = "ACTIVE"
	AccountStatusInactive = "INACTIVE"
)

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdTimestamp"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Account holds the owner as an id; the owning user is looked up explicitly when needed.
type Account struct {
	ID            int64           `json:"-"`
	AccountNumber string          `json:"accountNumber"`
	OwnerID       int64           `json:"-"`
	AccountType   string          `json:"accountType"`
	Status        string          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
}

// Movement is an append-only ledger entry. Amount is always positive; Type decides the sign.
type Movement struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"-"`
	AccountNumber string          `json:"accountNumber"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Type          MovementType    `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
}

// Signed returns the balance effect of the movement.
func (m *Movement) Signed() decimal.Decimal {
	if m.Type == Expense {
		return m.Amount.Neg()
	}
	return m.Amount
}
