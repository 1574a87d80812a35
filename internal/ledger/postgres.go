package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyprbank/ledger/shared/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Postgres error codes that make a whole unit of work safe to retry.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresStore is the production ledger on top of lib/pq.
type PostgresStore struct {
	db         *sql.DB
	maxRetries int
	log        *zap.Logger
}

func NewPostgresStore(db *sql.DB, maxRetries int, log *zap.Logger) *PostgresStore {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &PostgresStore{db: db, maxRetries: maxRetries, log: log}
}

// WithinTx retries fn from scratch when Postgres reports a serialization
// failure or deadlock; any other error is returned after rollback.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
		s.log.Warn("retrying ledger transaction",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", s.maxRetries),
			zap.Error(err),
		)
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &pgTx{q: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func isCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// ---------- shared lookups ----------

const accountColumns = `id, account_number, owner_id, account_type, status, balance, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.AccountNumber, &a.OwnerID, &a.AccountType, &a.Status, &a.Balance, &a.CreatedAt)
	return &a, err
}

func accountByNumber(ctx context.Context, q querier, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	account, err := scanAccount(q.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", number, models.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return &u, err
}

func userByID(ctx context.Context, q querier, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

const movementSelect = `
	SELECT m.id, m.account_id, a.account_number, m.date, m.description, m.type, m.amount
	FROM movements m
	JOIN accounts a ON a.id = m.account_id`

func scanMovements(rows *sql.Rows) ([]models.Movement, error) {
	defer rows.Close()
	var movements []models.Movement
	for rows.Next() {
		var m models.Movement
		if err := rows.Scan(&m.ID, &m.AccountID, &m.AccountNumber, &m.Date, &m.Description, &m.Type, &m.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Date = m.Date.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}
	return movements, nil
}

// ---------- Reader ----------

func (s *PostgresStore) AccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	return accountByNumber(ctx, s.db, number)
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return userByID(ctx, s.db, id)
}

func (s *PostgresStore) AccountsByOwner(ctx context.Context, ownerID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *PostgresStore) Movements(ctx context.Context, f MovementFilter) ([]models.Movement, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.OwnerID != 0 {
		add("a.owner_id = $%d", f.OwnerID)
	}
	if !f.From.IsZero() {
		add("m.date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("m.date <= $%d", f.To)
	}
	if f.Type != "" {
		add("m.type = $%d", string(f.Type))
	}

	query := movementSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.date DESC, m.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return scanMovements(rows)
}

func (s *PostgresStore) AllMovements(ctx context.Context, limit int) ([]OwnedMovement, error) {
	query := `
		SELECT m.id, m.account_id, a.account_number, m.date, m.description, m.type, m.amount,
		       u.first_name || ' ' || u.last_name
		FROM movements m
		JOIN accounts a ON a.id = m.account_id
		JOIN users u ON u.id = a.owner_id
		ORDER BY m.date DESC, m.id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list all movements: %w", err)
	}
	defer rows.Close()

	var out []OwnedMovement
	for rows.Next() {
		var om OwnedMovement
		if err := rows.Scan(&om.ID, &om.AccountID, &om.AccountNumber, &om.Date, &om.Description,
			&om.Type, &om.Amount, &om.OwnerName); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		om.Date = om.Date.UTC()
		out = append(out, om)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}
	return out, nil
}

// ---------- Registry ----------

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	if isCode(err, pqUniqueViolation) {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) OpenAccount(ctx context.Context, a *models.Account) error {
	if a.AccountType == "" {
		a.AccountType = models.AccountTypeSavings
	}
	if a.Status == "" {
		a.Status = models.AccountStatusActive
	}
	query := `
		INSERT INTO accounts (account_number, owner_id, account_type, status, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, a.AccountNumber, a.OwnerID, a.AccountType, a.Status, a.Balance).
		Scan(&a.ID, &a.CreatedAt)
	if isCode(err, pqUniqueViolation) {
		return fmt.Errorf("account %s: %w", a.AccountNumber, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to open account: %w", err)
	}
	return nil
}

// ---------- Tx ----------

type pgTx struct {
	q querier
}

func (t *pgTx) AccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	return accountByNumber(ctx, t.q, number)
}

func (t *pgTx) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return userByID(ctx, t.q, id)
}

// LockAccounts relies on ORDER BY being applied before FOR UPDATE, so rows are
// locked in ascending id order.
func (t *pgTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	ordered := lockOrder(ids)
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := t.q.QueryContext(ctx, query, pq.Array(ordered))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]*models.Account, len(ordered))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}
		locked[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	if len(locked) != len(ordered) {
		return nil, fmt.Errorf("locking %v: %w", ordered, models.ErrAccountNotFound)
	}
	return locked, nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("account id %d: %w", accountID, models.ErrInsufficientFunds)
	}
	result, err := t.q.ExecContext(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, accountID, balance)
	if isCode(err, pqCheckViolation) {
		return fmt.Errorf("account id %d: %w", accountID, models.ErrInsufficientFunds)
	}
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account id %d: %w", accountID, models.ErrAccountNotFound)
	}
	return nil
}

func (t *pgTx) InsertMovement(ctx context.Context, m *models.Movement) error {
	query := `
		INSERT INTO movements (account_id, date, description, type, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := t.q.QueryRowContext(ctx, query, m.AccountID, m.Date, m.Description, string(m.Type), m.Amount).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

func (t *pgTx) RecentMovements(ctx context.Context, accountID int64, limit int) ([]models.Movement, error) {
	query := movementSelect + ` WHERE m.account_id = $1 ORDER BY m.date DESC, m.id DESC LIMIT $2`
	rows, err := t.q.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent movements: %w", err)
	}
	return scanMovements(rows)
}
