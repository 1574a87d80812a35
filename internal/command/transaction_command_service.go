package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyprbank/ledger/internal/account"
	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/internal/movement"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/events"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/hyprbank/ledger/shared/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgDeposit          = "Deposit completed successfully."
	msgWithdrawal       = "Withdrawal completed successfully."
	msgInternalTransfer = "Internal transfer completed successfully."
	msgTransfer         = "Transfer completed successfully."
	msgExternalTransfer = "External transfer completed successfully."

	postCommitTimeout = 3 * time.Second
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	PublishMovementRecorded(ctx context.Context, e events.MovementRecordedEvent) error
	PublishBalanceUpdated(ctx context.Context, e events.BalanceUpdatedEvent) error
}

// AccountViewCache is satisfied by *repository.AccountReadRepository.
// Cached views are only ever dropped here; they are rebuilt from the store
// on the next read.
type AccountViewCache interface {
	InvalidateAccountView(ctx context.Context, accountNumber string)
}

// TransactionCommandService moves money. Every operation runs as one ledger
// unit of work; events and cache invalidations happen only after commit.
type TransactionCommandService struct {
	store     ledger.Store
	resolver  *account.Resolver
	recorder  *movement.Recorder
	assembler *TransferResponseAssembler
	publisher EventPublisher
	views     AccountViewCache
	log       *zap.Logger
}

// NewTransactionCommandService accepts nil publisher and views when Redis is not configured.
func NewTransactionCommandService(
	store ledger.Store,
	resolver *account.Resolver,
	recorder *movement.Recorder,
	assembler *TransferResponseAssembler,
	publisher EventPublisher,
	views AccountViewCache,
	log *zap.Logger,
) *TransactionCommandService {
	return &TransactionCommandService{
		store:     store,
		resolver:  resolver,
		recorder:  recorder,
		assembler: assembler,
		publisher: publisher,
		views:     views,
		log:       log,
	}
}

// committed collects what a unit of work changed, for post-commit side effects.
type committed struct {
	accounts  []*models.Account
	movements []*models.Movement
}

func (c *committed) touch(a *models.Account, m *models.Movement) {
	c.accounts = append(c.accounts, a)
	c.movements = append(c.movements, m)
}

func (s *TransactionCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.MovementResult, error) {
	var (
		acct *models.Account
		mv   *models.Movement
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		caller, err := s.caller(ctx, tx, cmd.UserID)
		if err != nil {
			return err
		}

		var target *models.Account
		if cmd.AsAdmin && caller.Role == models.RoleAdmin {
			target, err = s.resolver.Resolve(ctx, tx, cmd.AccountNumber)
		} else {
			target, err = s.resolver.ResolveOwned(ctx, tx, cmd.AccountNumber, cmd.UserID)
		}
		if err != nil {
			return err
		}
		if err := checkAmount(cmd.Amount); err != nil {
			return err
		}

		locked, err := tx.LockAccounts(ctx, target.ID)
		if err != nil {
			return err
		}
		acct = locked[target.ID]
		acct.Balance = acct.Balance.Add(cmd.Amount)
		if err := tx.UpdateBalance(ctx, acct.ID, acct.Balance); err != nil {
			return err
		}
		mv, err = s.recorder.Record(ctx, tx, acct, models.Income, cmd.Amount, cmd.Description, movement.DepositDescription)
		return err
	})
	if err != nil {
		s.logFailure("deposit", err, zap.Int64("userId", cmd.UserID), zap.String("account", cmd.AccountNumber),
			zap.String("amount", cmd.Amount.String()), zap.Bool("asAdmin", cmd.AsAdmin))
		return nil, err
	}

	s.log.Info("deposit committed",
		zap.Int64("userId", cmd.UserID),
		zap.String("account", acct.AccountNumber),
		zap.String("amount", cmd.Amount.StringFixed(2)),
		zap.String("newBalance", acct.Balance.StringFixed(2)),
	)
	s.afterCommit(ctx, &committed{accounts: []*models.Account{acct}, movements: []*models.Movement{mv}})

	return &models.MovementResult{
		Message:    msgDeposit,
		Movement:   models.NewMovementView(mv),
		NewBalance: acct.Balance.StringFixed(2),
	}, nil
}

func (s *TransactionCommandService) Withdrawal(ctx context.Context, cmd cqrs.WithdrawalCommand) (*models.MovementResult, error) {
	var (
		acct *models.Account
		mv   *models.Movement
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := s.caller(ctx, tx, cmd.UserID); err != nil {
			return err
		}
		target, err := s.resolver.ResolveOwned(ctx, tx, cmd.AccountNumber, cmd.UserID)
		if err != nil {
			return err
		}
		if err := checkAmount(cmd.Amount); err != nil {
			return err
		}

		locked, err := tx.LockAccounts(ctx, target.ID)
		if err != nil {
			return err
		}
		acct = locked[target.ID]
		if err := checkFunds(acct, cmd.Amount); err != nil {
			return err
		}
		acct.Balance = acct.Balance.Sub(cmd.Amount)
		if err := tx.UpdateBalance(ctx, acct.ID, acct.Balance); err != nil {
			return err
		}
		mv, err = s.recorder.Record(ctx, tx, acct, models.Expense, cmd.Amount, cmd.Description, movement.WithdrawalDescription)
		return err
	})
	if err != nil {
		s.logFailure("withdrawal", err, zap.Int64("userId", cmd.UserID), zap.String("account", cmd.AccountNumber),
			zap.String("amount", cmd.Amount.String()))
		return nil, err
	}

	s.log.Info("withdrawal committed",
		zap.Int64("userId", cmd.UserID),
		zap.String("account", acct.AccountNumber),
		zap.String("amount", cmd.Amount.StringFixed(2)),
		zap.String("newBalance", acct.Balance.StringFixed(2)),
	)
	s.afterCommit(ctx, &committed{accounts: []*models.Account{acct}, movements: []*models.Movement{mv}})

	return &models.MovementResult{
		Message:    msgWithdrawal,
		Movement:   models.NewMovementView(mv),
		NewBalance: acct.Balance.StringFixed(2),
	}, nil
}

// InternalTransfer moves money between two accounts of the caller.
func (s *TransactionCommandService) InternalTransfer(ctx context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	return s.transfer(ctx, "internal transfer", cmd, false)
}

// TransferToOtherUser moves money from the caller's account to any account in the system.
func (s *TransactionCommandService) TransferToOtherUser(ctx context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	return s.transfer(ctx, "transfer", cmd, true)
}

func (s *TransactionCommandService) transfer(ctx context.Context, op string, cmd cqrs.TransferCommand, anyDestination bool) (*models.TransferResult, error) {
	fields := []zap.Field{
		zap.Int64("userId", cmd.UserID),
		zap.String("origin", cmd.OriginAccountNumber),
		zap.String("destination", cmd.DestinationAccountNumber),
		zap.String("amount", cmd.Amount.String()),
	}
	if cmd.OriginAccountNumber == cmd.DestinationAccountNumber {
		err := fmt.Errorf("%s %s: %w", op, cmd.OriginAccountNumber, models.ErrSameAccount)
		s.logFailure(op, err, fields...)
		return nil, err
	}

	var (
		origin, dest *models.Account
		out, in      *models.Movement
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		caller, err := s.caller(ctx, tx, cmd.UserID)
		if err != nil {
			return err
		}
		o, err := s.resolver.ResolveOwned(ctx, tx, cmd.OriginAccountNumber, cmd.UserID)
		if err != nil {
			return err
		}
		var d *models.Account
		if anyDestination {
			d, err = s.resolver.Resolve(ctx, tx, cmd.DestinationAccountNumber)
		} else {
			d, err = s.resolver.ResolveOwned(ctx, tx, cmd.DestinationAccountNumber, cmd.UserID)
		}
		if err != nil {
			return err
		}
		if err := checkAmount(cmd.Amount); err != nil {
			return err
		}

		outDesc := movement.InternalTransferTo(d.AccountNumber)
		inDesc := movement.InternalTransferFrom(o.AccountNumber)
		if anyDestination {
			recipient, err := s.ownerName(ctx, tx, d.OwnerID)
			if err != nil {
				return err
			}
			outDesc = movement.TransferTo(recipient, d.AccountNumber)
			inDesc = movement.TransferFrom(caller.FullName(), o.AccountNumber)
		}

		locked, err := tx.LockAccounts(ctx, o.ID, d.ID)
		if err != nil {
			return err
		}
		origin, dest = locked[o.ID], locked[d.ID]
		if err := checkFunds(origin, cmd.Amount); err != nil {
			return err
		}

		origin.Balance = origin.Balance.Sub(cmd.Amount)
		dest.Balance = dest.Balance.Add(cmd.Amount)
		if err := tx.UpdateBalance(ctx, origin.ID, origin.Balance); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, dest.ID, dest.Balance); err != nil {
			return err
		}

		if out, err = s.recorder.Record(ctx, tx, origin, models.Expense, cmd.Amount, cmd.Description, outDesc); err != nil {
			return err
		}
		in, err = s.recorder.Record(ctx, tx, dest, models.Income, cmd.Amount, cmd.Description, inDesc)
		return err
	})
	if err != nil {
		s.logFailure(op, err, fields...)
		return nil, err
	}

	s.log.Info(op+" committed", append(fields,
		zap.String("newOriginBalance", origin.Balance.StringFixed(2)),
		zap.String("newDestinationBalance", dest.Balance.StringFixed(2)),
	)...)
	s.afterCommit(ctx, &committed{
		accounts:  []*models.Account{origin, dest},
		movements: []*models.Movement{out, in},
	})

	msg := msgInternalTransfer
	if anyDestination {
		msg = msgTransfer
	}
	return s.assembler.Transfer(msg, origin, out, in), nil
}

// ExternalTransfer debits the caller's account. The destination is credited
// only if the account number exists in this ledger.
func (s *TransactionCommandService) ExternalTransfer(ctx context.Context, cmd cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error) {
	fields := []zap.Field{
		zap.Int64("userId", cmd.UserID),
		zap.String("origin", cmd.OriginAccountNumber),
		zap.String("destination", cmd.DestinationAccountNumber),
		zap.String("destinationBank", cmd.DestinationBank),
		zap.String("amount", cmd.Amount.String()),
	}

	var (
		result *models.ExternalTransferResult
		change committed
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		change = committed{}

		caller, err := s.caller(ctx, tx, cmd.UserID)
		if err != nil {
			return err
		}
		o, err := s.resolver.ResolveOwned(ctx, tx, cmd.OriginAccountNumber, cmd.UserID)
		if err != nil {
			return err
		}
		d, err := s.resolver.Resolve(ctx, tx, cmd.DestinationAccountNumber)
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			d = nil
		case err != nil:
			return err
		case d.ID == o.ID:
			return fmt.Errorf("external transfer %s: %w", o.AccountNumber, models.ErrSameAccount)
		}
		if err := checkAmount(cmd.Amount); err != nil {
			return err
		}

		ids := []int64{o.ID}
		if d != nil {
			ids = append(ids, d.ID)
		}
		locked, err := tx.LockAccounts(ctx, ids...)
		if err != nil {
			return err
		}
		origin := locked[o.ID]
		if err := checkFunds(origin, cmd.Amount); err != nil {
			return err
		}

		origin.Balance = origin.Balance.Sub(cmd.Amount)
		if err := tx.UpdateBalance(ctx, origin.ID, origin.Balance); err != nil {
			return err
		}
		sent := movement.ExternalSent(cmd.DestinationName, cmd.DestinationBank, cmd.DestinationAccountNumber, cmd.Description)
		out, err := s.recorder.Record(ctx, tx, origin, models.Expense, cmd.Amount, sent, sent)
		if err != nil {
			return err
		}
		change.touch(origin, out)

		if d != nil {
			dest := locked[d.ID]
			dest.Balance = dest.Balance.Add(cmd.Amount)
			if err := tx.UpdateBalance(ctx, dest.ID, dest.Balance); err != nil {
				return err
			}
			received := movement.ExternalReceived(caller.FullName(), origin.AccountNumber, cmd.Description)
			in, err := s.recorder.Record(ctx, tx, dest, models.Income, cmd.Amount, received, received)
			if err != nil {
				return err
			}
			change.touch(dest, in)
		}

		result, err = s.assembler.External(ctx, tx, msgExternalTransfer, origin, out)
		return err
	})
	if err != nil {
		s.logFailure("external transfer", err, fields...)
		return nil, err
	}

	s.log.Info("external transfer committed", append(fields,
		zap.Bool("creditedInLedger", len(change.accounts) == 2),
		zap.String("newOriginBalance", result.NewOriginBalance),
	)...)
	s.afterCommit(ctx, &change)
	return result, nil
}

// caller verifies the authenticated user still exists. A miss here means the
// token outlived the user, which is reported as an internal failure.
func (s *TransactionCommandService) caller(ctx context.Context, tx ledger.Tx, userID int64) (*models.User, error) {
	u, err := tx.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving caller: %w", err)
	}
	return u, nil
}

// ownerName returns "" when the owner record is gone; the name is only used in descriptions.
func (s *TransactionCommandService) ownerName(ctx context.Context, tx ledger.Tx, ownerID int64) (string, error) {
	u, err := tx.UserByID(ctx, ownerID)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.FullName(), nil
}

func checkAmount(amount decimal.Decimal) error {
	if !utils.ValidAmount(amount) {
		return fmt.Errorf("amount %s: %w", amount, models.ErrInvalidAmount)
	}
	return nil
}

func checkFunds(acct *models.Account, amount decimal.Decimal) error {
	if acct.Balance.LessThan(amount) {
		return fmt.Errorf("account %s: %w", acct.AccountNumber, models.ErrInsufficientFunds)
	}
	return nil
}

func (s *TransactionCommandService) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	if models.IsValidation(err) {
		s.log.Warn("ledger operation rejected", fields...)
		return
	}
	s.log.Error("ledger operation failed", fields...)
}

// afterCommit drops cached views and publishes events. The ledger is
// already committed, so failures are only logged.
func (s *TransactionCommandService) afterCommit(ctx context.Context, c *committed) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	// Outside the row locks: views are invalidated, never written.
	if s.views != nil {
		for _, a := range c.accounts {
			s.views.InvalidateAccountView(ctx, a.AccountNumber)
		}
	}

	if s.publisher == nil {
		return
	}
	changes := make(map[int64]decimal.Decimal, len(c.accounts))
	for _, m := range c.movements {
		changes[m.AccountID] = changes[m.AccountID].Add(m.Signed())
	}
	for _, m := range c.movements {
		if err := s.publisher.PublishMovementRecorded(ctx, events.NewMovementRecordedEvent(m)); err != nil {
			s.log.Warn("failed to publish event", zap.String("type", events.MovementRecorded), zap.Error(err))
		}
	}
	for _, a := range c.accounts {
		if err := s.publisher.PublishBalanceUpdated(ctx, events.NewBalanceUpdatedEvent(a, changes[a.ID])); err != nil {
			s.log.Warn("failed to publish event", zap.String("type", events.BalanceUpdated), zap.Error(err))
		}
	}
}
