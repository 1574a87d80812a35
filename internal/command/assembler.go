package command

import (
	"context"
	"fmt"

	"github.com/hyprbank/ledger/shared/models"
)

// RecentLister is the part of a ledger transaction the assembler reads from.
type RecentLister interface {
	RecentMovements(ctx context.Context, accountID int64, limit int) ([]models.Movement, error)
}

// TransferResponseAssembler builds transfer responses.
type TransferResponseAssembler struct {
	recent int
}

func NewTransferResponseAssembler(recent int) *TransferResponseAssembler {
	if recent <= 0 {
		recent = 5
	}
	return &TransferResponseAssembler{recent: recent}
}

func (a *TransferResponseAssembler) Transfer(message string, origin *models.Account, movements ...*models.Movement) *models.TransferResult {
	views := make([]models.MovementView, len(movements))
	for i, m := range movements {
		views[i] = models.NewMovementView(m)
	}
	return &models.TransferResult{
		Message:          message,
		Movements:        views,
		NewOriginBalance: origin.Balance.StringFixed(2),
	}
}

// External reads the origin's history through src, so when src is the open
// transaction the just-recorded movement is already included.
func (a *TransferResponseAssembler) External(
	ctx context.Context,
	src RecentLister,
	message string,
	origin *models.Account,
	last *models.Movement,
) (*models.ExternalTransferResult, error) {
	recent, err := src.RecentMovements(ctx, origin.ID, a.recent)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent movements: %w", err)
	}
	return &models.ExternalTransferResult{
		Message:            message,
		NewOriginBalance:   origin.Balance.StringFixed(2),
		LastOriginMovement: models.NewMovementView(last),
		RecentMovements:    models.NewMovementViews(recent),
	}, nil
}
