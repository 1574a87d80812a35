package movement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyprbank/ledger/shared/models"
	"github.com/hyprbank/ledger/shared/utils"
	"github.com/shopspring/decimal"
)

// Writer is the part of a ledger transaction the recorder needs.
type Writer interface {
	InsertMovement(ctx context.Context, m *models.Movement) error
}

// Recorder appends movements. Dates always come from its clock, never from the caller.
type Recorder struct {
	now func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Record appends one movement for acct and returns it with its generated id.
// A blank description is replaced by fallback.
func (r *Recorder) Record(
	ctx context.Context,
	w Writer,
	acct *models.Account,
	typ models.MovementType,
	amount decimal.Decimal,
	description, fallback string,
) (*models.Movement, error) {
	if !utils.ValidAmount(amount) {
		return nil, fmt.Errorf("recording %s of %s: %w", typ, amount, models.ErrInvalidAmount)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown movement type %q", typ)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = fallback
	}

	m := &models.Movement{
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		Date:          Today(r.now()),
		Description:   description,
		Type:          typ,
		Amount:        amount,
	}
	if err := w.InsertMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Today truncates t to its calendar date in UTC.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
