package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps the ledger in process memory. Each account has its own
// mutex standing in for a row lock; writes are staged in the Tx and applied
// under the store mutex at commit. Row mutexes are never released, so it is
// meant for tests and demos, not long-running production use.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[int64]*models.User
	accounts  map[int64]*models.Account
	byNumber  map[string]int64
	movements []models.Movement

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	userSeq     atomic.Int64
	accountSeq  atomic.Int64
	movementSeq atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*models.User),
		accounts: make(map[int64]*models.Account),
		byNumber: make(map[string]int64),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (s *MemoryStore) rowLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		store:    s,
		held:     make(map[int64]*sync.Mutex),
		balances: make(map[int64]decimal.Decimal),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ---------- Reader ----------

func (s *MemoryStore) AccountByNumber(_ context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, models.ErrAccountNotFound)
	}
	a := *s.accounts[id]
	return &a, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrUserNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) AccountsByOwner(_ context.Context, ownerID int64) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (s *MemoryStore) Movements(_ context.Context, f MovementFilter) ([]models.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Movement
	for _, m := range s.movements {
		if f.OwnerID != 0 && s.accounts[m.AccountID].OwnerID != f.OwnerID {
			continue
		}
		if !f.From.IsZero() && m.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && m.Date.After(f.To) {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		out = append(out, m)
	}
	newestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AllMovements(ctx context.Context, limit int) ([]OwnedMovement, error) {
	ms, err := s.Movements(ctx, MovementFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OwnedMovement, len(ms))
	for i, m := range ms {
		out[i] = OwnedMovement{Movement: m}
		if owner, ok := s.users[s.accounts[m.AccountID].OwnerID]; ok {
			out[i].OwnerName = owner.FullName()
		}
	}
	return out, nil
}

// ---------- Registry ----------

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrUserNotFound)
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
	}
	u.ID = s.userSeq.Add(1)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) OpenAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", a.OwnerID, models.ErrUserNotFound)
	}
	if _, ok := s.byNumber[a.AccountNumber]; ok {
		return fmt.Errorf("account %s: %w", a.AccountNumber, ErrDuplicate)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account %s: %w", a.AccountNumber, models.ErrInsufficientFunds)
	}
	a.ID = s.accountSeq.Add(1)
	if a.AccountType == "" {
		a.AccountType = models.AccountTypeSavings
	}
	if a.Status == "" {
		a.Status = models.AccountStatusActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.byNumber[a.AccountNumber] = a.ID
	return nil
}

// ---------- Tx ----------

type memTx struct {
	store    *MemoryStore
	held     map[int64]*sync.Mutex
	order    []int64
	balances map[int64]decimal.Decimal
	pending  []models.Movement
}

func (t *memTx) AccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	a, err := t.store.AccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if b, ok := t.balances[a.ID]; ok {
		a.Balance = b
	}
	return a, nil
}

func (t *memTx) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return t.store.UserByID(ctx, id)
}

// LockAccounts skips accounts this Tx already holds.
func (t *memTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	ordered := lockOrder(ids)

	t.store.mu.RLock()
	for _, id := range ordered {
		if _, ok := t.store.accounts[id]; !ok {
			t.store.mu.RUnlock()
			return nil, fmt.Errorf("account id %d: %w", id, models.ErrAccountNotFound)
		}
	}
	t.store.mu.RUnlock()

	for _, id := range ordered {
		if _, ok := t.held[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := t.store.rowLock(id)
		l.Lock()
		t.held[id] = l
		t.order = append(t.order, id)
	}

	out := make(map[int64]*models.Account, len(ordered))
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, id := range ordered {
		a := *t.store.accounts[id]
		if b, ok := t.balances[id]; ok {
			a.Balance = b
		}
		out[id] = &a
	}
	return out, nil
}

func (t *memTx) UpdateBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	if _, ok := t.held[accountID]; !ok {
		return fmt.Errorf("account id %d is not locked in this transaction", accountID)
	}
	if balance.IsNegative() {
		return fmt.Errorf("account id %d: %w", accountID, models.ErrInsufficientFunds)
	}
	t.balances[accountID] = balance
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, m *models.Movement) error {
	if _, ok := t.held[m.AccountID]; !ok {
		return fmt.Errorf("account id %d is not locked in this transaction", m.AccountID)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("invalid movement type %q", m.Type)
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("movement amount %s: %w", m.Amount, models.ErrInvalidAmount)
	}
	m.ID = t.store.movementSeq.Add(1)
	t.pending = append(t.pending, *m)
	return nil
}

func (t *memTx) RecentMovements(_ context.Context, accountID int64, limit int) ([]models.Movement, error) {
	t.store.mu.RLock()
	var out []models.Movement
	for _, m := range t.store.movements {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	t.store.mu.RUnlock()
	for _, m := range t.pending {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	newestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, b := range t.balances {
		t.store.accounts[id].Balance = b
	}
	t.store.movements = append(t.store.movements, t.pending...)
}

func (t *memTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.held[t.order[i]].Unlock()
	}
	t.held = nil
	t.order = nil
}

func sortAccounts(as []models.Account) {
	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
}
