package projection

import (
	"context"
	"fmt"

	"github.com/hyprbank/ledger/shared/events"
	"go.uber.org/zap"
)

const ConsumerGroup = "ledger-projector"

// ViewInvalidator is satisfied by *repository.AccountReadRepository.
type ViewInvalidator interface {
	InvalidateAccountView(ctx context.Context, accountNumber string)
}

// AccountViewProjector keeps cached account views coherent across replicas:
// every balance.updated event drops the cached view, and the next read
// re-warms it from the ledger. Invalidation is idempotent, so redelivered
// events are harmless.
type AccountViewProjector struct {
	views ViewInvalidator
	log   *zap.Logger
}

func NewAccountViewProjector(views ViewInvalidator, log *zap.Logger) *AccountViewProjector {
	return &AccountViewProjector{views: views, log: log}
}

// Handle is an events.Handler.
func (p *AccountViewProjector) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.BalanceUpdated {
		return nil
	}
	var data events.BalanceUpdatedEvent
	if err := event.Decode(&data); err != nil {
		return err
	}
	if data.AccountNumber == "" {
		return fmt.Errorf("%s event without account number", event.Type)
	}
	p.views.InvalidateAccountView(ctx, data.AccountNumber)
	p.log.Debug("account view invalidated",
		zap.String("account", data.AccountNumber),
		zap.String("newBalance", data.NewBalance),
	)
	return nil
}
