package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	updateBalanceSQL = regexp.QuoteMeta(`UPDATE accounts SET balance = $2 WHERE id = $1`)
	lockAccountsSQL  = regexp.QuoteMeta(`FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`)
)

func newMockStore(t *testing.T, maxRetries int) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, maxRetries, zap.NewNop()), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_number", "owner_id", "account_type", "status", "balance", "created_at"})
}

func setBalance(id int64, amount string) func(ctx context.Context, tx Tx) error {
	return func(ctx context.Context, tx Tx) error {
		return tx.UpdateBalance(ctx, id, dec(amount))
	}
}

func TestWithinTxRetriesTransientFailures(t *testing.T) {
	for _, code := range []string{pqSerializationFailure, pqDeadlockDetected} {
		t.Run(code, func(t *testing.T) {
			store, mock := newMockStore(t, 3)

			mock.ExpectBegin()
			mock.ExpectExec(updateBalanceSQL).WithArgs(int64(1), "10").
				WillReturnError(&pq.Error{Code: pq.ErrorCode(code)})
			mock.ExpectRollback()
			mock.ExpectBegin()
			mock.ExpectExec(updateBalanceSQL).WithArgs(int64(1), "10").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			attempts := 0
			err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
				attempts++
				return setBalance(1, "10")(ctx, tx)
			})
			require.NoError(t, err)
			assert.Equal(t, 2, attempts)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithinTxGivesUpAfterMaxRetries(t *testing.T) {
	store, mock := newMockStore(t, 2)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(updateBalanceSQL).WillReturnError(&pq.Error{Code: pqSerializationFailure})
		mock.ExpectRollback()
	}

	attempts := 0
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		attempts++
		return setBalance(1, "10")(ctx, tx)
	})

	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode(pqSerializationFailure), pqErr.Code)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t, 3)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	attempts := 0
	err := store.WithinTx(context.Background(), func(context.Context, Tx) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	store, mock := newMockStore(t, 3)
	mock.ExpectBegin()
	mock.ExpectExec(updateBalanceSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "half-applied", func() {
		_ = store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
			if err := setBalance(1, "10")(ctx, tx); err != nil {
				return err
			}
			panic("half-applied")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxCommitFailure(t *testing.T) {
	store, mock := newMockStore(t, 3)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := store.WithinTx(context.Background(), func(context.Context, Tx) error { return nil })
	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxBeginFailure(t *testing.T) {
	store, mock := newMockStore(t, 3)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := store.WithinTx(context.Background(), func(context.Context, Tx) error {
		t.Error("unit of work ran without a transaction")
		return nil
	})
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAccountsLocksInIDOrder(t *testing.T) {
	store, mock := newMockStore(t, 1)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAccountsSQL).WithArgs("{1,2}").WillReturnRows(accountRows().
		AddRow(int64(1), "01000001", int64(7), models.AccountTypeSavings, models.AccountStatusActive, "100.00", created).
		AddRow(int64(2), "01000002", int64(8), models.AccountTypeChecking, models.AccountStatusActive, "5.50", created))
	mock.ExpectCommit()

	var locked map[int64]*models.Account
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		locked, err = tx.LockAccounts(ctx, 2, 1, 2)
		return err
	})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "01000002", locked[2].AccountNumber)
	assert.True(t, locked[1].Balance.Equal(dec("100")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAccountsMissingRow(t *testing.T) {
	store, mock := newMockStore(t, 3)
	mock.ExpectBegin()
	mock.ExpectQuery(lockAccountsSQL).WithArgs("{1,2}").WillReturnRows(accountRows().
		AddRow(int64(1), "01000001", int64(7), models.AccountTypeSavings, models.AccountStatusActive, "100.00", time.Now()))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockAccounts(ctx, 1, 2)
		return err
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalanceErrors(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:   "check violation",
			amount: "10",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(updateBalanceSQL).WithArgs(int64(1), "10").
					WillReturnError(&pq.Error{Code: pqCheckViolation, Constraint: "accounts_balance_check"})
			},
			wantErr: models.ErrInsufficientFunds,
		},
		{
			name:    "negative balance never reaches the database",
			amount:  "-0.01",
			expect:  func(sqlmock.Sqlmock) {},
			wantErr: models.ErrInsufficientFunds,
		},
		{
			name:   "no such row",
			amount: "10",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(updateBalanceSQL).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: models.ErrAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t, 3)
			mock.ExpectBegin()
			tt.expect(mock)
			mock.ExpectRollback()

			attempts := 0
			err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
				attempts++
				return setBalance(1, tt.amount)(ctx, tx)
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, attempts)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsertMovementReturnsID(t *testing.T) {
	store, mock := newMockStore(t, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO movements`)).
		WithArgs(int64(1), sqlmock.AnyArg(), "Deposit", "INCOME", "25").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	m := &models.Movement{
		AccountID:   1,
		Date:        time.Now().UTC(),
		Description: "Deposit",
		Type:        models.Income,
		Amount:      dec("25"),
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertMovement(ctx, m)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
