package account

import (
	"context"
	"fmt"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/models"
)

// Resolver looks accounts up by number. It has no state of its own; the
// finder passed in decides whether the read happens inside a unit of work.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve finds an account by number system-wide.
func (r *Resolver) Resolve(ctx context.Context, src ledger.AccountFinder, number string) (*models.Account, error) {
	if number == "" {
		return nil, models.ErrAccountNotFound
	}
	return src.AccountByNumber(ctx, number)
}

// ResolveOwned finds an account by number that belongs to ownerID. An account
// owned by someone else is reported exactly like a missing one.
func (r *Resolver) ResolveOwned(ctx context.Context, src ledger.AccountFinder, number string, ownerID int64) (*models.Account, error) {
	acct, err := r.Resolve(ctx, src, number)
	if err != nil {
		return nil, err
	}
	if acct.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", number, models.ErrAccountNotFound)
	}
	return acct, nil
}
