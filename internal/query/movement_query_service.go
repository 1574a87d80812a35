package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/models"
)

// ErrInvalidFilter is returned for history filters that cannot be satisfied.
var ErrInvalidFilter = errors.New("invalid movement filter")

// MaxHistoryLimit caps a single history page.
const MaxHistoryLimit = 500

type MovementQueryService struct {
	store ledger.Reader
}

func NewMovementQueryService(store ledger.Reader) *MovementQueryService {
	return &MovementQueryService{store: store}
}

// History lists movements across all accounts of the caller, newest first.
func (s *MovementQueryService) History(ctx context.Context, q cqrs.MovementHistoryQuery) ([]models.MovementView, error) {
	if q.StartDate.IsZero() != q.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: startDate and endDate must be given together", ErrInvalidFilter)
	}
	if !q.StartDate.IsZero() && q.StartDate.After(q.EndDate) {
		return nil, fmt.Errorf("%w: startDate is after endDate", ErrInvalidFilter)
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidFilter, q.Type)
	}
	limit, err := clampLimit(q.Limit)
	if err != nil {
		return nil, err
	}

	ms, err := s.store.Movements(ctx, ledger.MovementFilter{
		OwnerID: q.UserID,
		From:    q.StartDate,
		To:      q.EndDate,
		Type:    q.Type,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	return models.NewMovementViews(ms), nil
}

// AllMovements lists every movement in the ledger with its owner's name.
func (s *MovementQueryService) AllMovements(ctx context.Context, limit int) ([]models.AdminMovementView, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return nil, err
	}
	ms, err := s.store.AllMovements(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]models.AdminMovementView, len(ms))
	for i := range ms {
		views[i] = models.AdminMovementView{
			MovementView: models.NewMovementView(&ms[i].Movement),
			OwnerName:    ms[i].OwnerName,
		}
	}
	return views, nil
}

// clampLimit maps 0 to MaxHistoryLimit.
func clampLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be positive", ErrInvalidFilter)
	case limit == 0 || limit > MaxHistoryLimit:
		return MaxHistoryLimit, nil
	default:
		return limit, nil
	}
}
