package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/internal/repository"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

type AccountQueryService struct {
	readRepo *repository.AccountReadRepository
	users    ledger.UserFinder
}

func NewAccountQueryService(readRepo *repository.AccountReadRepository, users ledger.UserFinder) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo, users: users}
}

// GetAccount fetches a single account view. Accounts of other users are
// reported as not found.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.readRepo.GetByAccountNumber(ctx, q.AccountNumber)
	if err != nil {
		return nil, err
	}
	if view.OwnerID != q.RequestingUserID {
		return nil, fmt.Errorf("account %s: %w", q.AccountNumber, models.ErrAccountNotFound)
	}
	return view, nil
}

// ListAccounts returns the caller's accounts and their combined balance.
func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) (*models.AccountsSummary, error) {
	views, err := s.readRepo.ListByOwner(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, v := range views {
		b, err := decimal.NewFromString(v.Balance)
		if err != nil {
			return nil, fmt.Errorf("account %s has malformed balance %q: %w", v.AccountNumber, v.Balance, err)
		}
		total = total.Add(b)
	}
	return &models.AccountsSummary{Accounts: views, TotalBalance: total.StringFixed(2)}, nil
}

// AdminGetAccount looks an account up without an ownership check.
func (s *AccountQueryService) AdminGetAccount(ctx context.Context, accountNumber string) (*models.AdminAccountView, error) {
	view, err := s.readRepo.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	out := &models.AdminAccountView{AccountView: *view, OwnerID: view.OwnerID}
	owner, err := s.users.UserByID(ctx, view.OwnerID)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
	case err != nil:
		return nil, err
	default:
		out.OwnerName = owner.FullName()
	}
	return out, nil
}
