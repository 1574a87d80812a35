package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

// Event types
const (
	MovementRecorded = "movement.recorded"
	BalanceUpdated   = "balance.updated"
)

// LedgerEventsStream carries every committed balance change.
const LedgerEventsStream = "ledger.events"

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode converts the generic Data payload into v.
func (e Event) Decode(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s payload: %w", e.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Amounts travel as fixed two-decimal strings so no precision is lost on the wire.

type MovementRecordedEvent struct {
	MovementID    int64  `json:"movementId"`
	AccountNumber string `json:"accountNumber"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Date          string `json:"date"`
}

func NewMovementRecordedEvent(m *models.Movement) MovementRecordedEvent {
	return MovementRecordedEvent{
		MovementID:    m.ID,
		AccountNumber: m.AccountNumber,
		Type:          string(m.Type),
		Amount:        m.Amount.StringFixed(2),
		Description:   m.Description,
		Date:          m.Date.Format(models.DateLayout),
	}
}

type BalanceUpdatedEvent struct {
	AccountNumber string `json:"accountNumber"`
	OwnerID       int64  `json:"ownerId"`
	NewBalance    string `json:"newBalance"`
	Change        string `json:"change"`
}

// NewBalanceUpdatedEvent takes the post-commit account and the net change
// applied to it by the unit of work.
func NewBalanceUpdatedEvent(a *models.Account, change decimal.Decimal) BalanceUpdatedEvent {
	return BalanceUpdatedEvent{
		AccountNumber: a.AccountNumber,
		OwnerID:       a.OwnerID,
		NewBalance:    a.Balance.StringFixed(2),
		Change:        change.StringFixed(2),
	}
}
