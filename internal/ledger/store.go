// Package ledger persists accounts and movements and provides the unit of work
// that every balance-changing operation runs in.
//
// Two implementations exist: PostgresStore for production and MemoryStore for
// tests and single-process demos. Both serialise writers per account with row
// locks acquired in ascending account id order.
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by Registry when a unique key (email, account number) is taken.
var ErrDuplicate = errors.New("already exists")

// AccountFinder looks an account up by number. A missing account yields
// models.ErrAccountNotFound.
type AccountFinder interface {
	AccountByNumber(ctx context.Context, number string) (*models.Account, error)
}

// UserFinder yields models.ErrUserNotFound for unknown ids.
type UserFinder interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Tx is the view of the store inside a unit of work. Balance updates and
// movement inserts are only allowed on accounts locked through LockAccounts.
type Tx interface {
	AccountFinder
	UserFinder

	// LockAccounts locks the given accounts for the rest of the unit of work,
	// always in ascending id order, and returns their current state keyed by id.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	// InsertMovement appends m and sets its generated ID.
	InsertMovement(ctx context.Context, m *models.Movement) error
	// RecentMovements returns up to limit movements of the account, newest first.
	RecentMovements(ctx context.Context, accountID int64, limit int) ([]models.Movement, error)
}

// MovementFilter selects movements across all accounts of an owner.
// Zero values disable the corresponding filter.
type MovementFilter struct {
	OwnerID int64
	From    time.Time
	To      time.Time
	Type    models.MovementType
	Limit   int
}

// OwnedMovement is a movement together with its account owner's name.
type OwnedMovement struct {
	models.Movement
	OwnerName string
}

type Reader interface {
	AccountFinder
	UserFinder
	AccountsByOwner(ctx context.Context, ownerID int64) ([]models.Account, error)
	Movements(ctx context.Context, filter MovementFilter) ([]models.Movement, error)
	AllMovements(ctx context.Context, limit int) ([]OwnedMovement, error)
}

type Store interface {
	Reader
	// WithinTx runs fn as one atomic unit. A nil return commits; an error or
	// panic rolls back every change fn made. Locks are released on all paths.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Registry creates users and accounts. Only the seed command uses it.
type Registry interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	OpenAccount(ctx context.Context, a *models.Account) error
}

// lockOrder returns ids deduplicated and sorted ascending.
func lockOrder(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// newestFirst orders movements by date then id, both descending.
func newestFirst(ms []models.Movement) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].Date.Equal(ms[j].Date) {
			return ms[i].Date.After(ms[j].Date)
		}
		return ms[i].ID > ms[j].ID
	})
}
