package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/config"
	"github.com/hyprbank/ledger/shared/logger"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/hyprbank/ledger/shared/utils"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	seedPassword       = "hyprbank123"
	accountNumberTries = 5
)

type seedAccount struct {
	accountType string
	balance     string
}

type seedUser struct {
	firstName, lastName, email, role string
	accounts                         []seedAccount
}

var demoUsers = []seedUser{
	{firstName: "Admin", lastName: "Hyprbank", email: "admin@hyprbank.local", role: models.RoleAdmin},
	{
		firstName: "Ana", lastName: "Diaz", email: "ana@hyprbank.local", role: models.RoleUser,
		accounts: []seedAccount{{models.AccountTypeSavings, "1500.00"}, {models.AccountTypeChecking, "320.50"}},
	},
	{
		firstName: "Luis", lastName: "Perez", email: "luis@hyprbank.local", role: models.RoleUser,
		accounts: []seedAccount{{models.AccountTypeSavings, "800.00"}},
	},
}

var newAccountNumber = utils.GenerateAccountNumber

// seeded is what the seed run created or found for one demo user.
type seeded struct {
	user     *models.User
	accounts []models.Account
	token    string
	expires  time.Time
}

func newSeedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users and accounts and print their bearer tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Ledger.Store == config.StoreMemory {
				return errors.New("seed needs a persistent store; use serve --seed with the memory store")
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, closeStore, err := openBackend(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := seedDemo(cmd.Context(), store, cfg, log)
			if err != nil {
				return err
			}
			printSeeded(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// seedDemo is idempotent per user: an existing email keeps its accounts.
func seedDemo(ctx context.Context, store backend, cfg *config.Config, log *zap.Logger) ([]seeded, error) {
	hash, err := utils.HashPassword(seedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	out := make([]seeded, 0, len(demoUsers))
	for _, du := range demoUsers {
		user := &models.User{
			FirstName:    du.firstName,
			LastName:     du.lastName,
			Email:        du.email,
			PasswordHash: hash,
			Role:         du.role,
		}
		err := store.CreateUser(ctx, user)
		switch {
		case errors.Is(err, ledger.ErrDuplicate):
			if user, err = store.UserByEmail(ctx, du.email); err != nil {
				return nil, err
			}
			if !utils.CheckPassword(seedPassword, user.PasswordHash) {
				log.Warn("demo user password was changed", zap.String("email", du.email))
			} else {
				log.Info("demo user already present", zap.String("email", du.email))
			}
		case err != nil:
			return nil, err
		default:
			for _, da := range du.accounts {
				if err := openDemoAccount(ctx, store, user.ID, da); err != nil {
					return nil, err
				}
			}
		}

		accounts, err := store.AccountsByOwner(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		token, err := middleware.IssueToken([]byte(cfg.JWT.Secret), user.ID, user.Email, user.Role, cfg.JWT.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue token: %w", err)
		}
		out = append(out, seeded{user: user, accounts: accounts, token: token, expires: time.Now().Add(cfg.JWT.TTL)})
	}
	return out, nil
}

func openDemoAccount(ctx context.Context, registry ledger.Registry, ownerID int64, da seedAccount) error {
	balance, err := decimal.NewFromString(da.balance)
	if err != nil {
		return err
	}
	for i := 0; i < accountNumberTries; i++ {
		number, genErr := newAccountNumber()
		if genErr != nil {
			return genErr
		}
		err = registry.OpenAccount(ctx, &models.Account{
			AccountNumber: number,
			OwnerID:       ownerID,
			AccountType:   da.accountType,
			Status:        models.AccountStatusActive,
			Balance:       balance,
		})
		if !errors.Is(err, ledger.ErrDuplicate) {
			return err
		}
	}
	return fmt.Errorf("no free account number after %d tries: %w", accountNumberTries, err)
}

func printSeeded(w io.Writer, result []seeded) {
	fmt.Fprintf(w, "Demo password for every user: %s\n\n", seedPassword)
	for _, s := range result {
		fmt.Fprintf(w, "%s <%s> role=%s id=%d\n", s.user.FullName(), s.user.Email, s.user.Role, s.user.ID)
		for _, a := range s.accounts {
			fmt.Fprintf(w, "  %s %-8s %s\n", a.AccountNumber, a.AccountType, a.Balance.StringFixed(2))
		}
		fmt.Fprintf(w, "  token (valid until %s): %s\n\n", s.expires.Format(time.RFC3339), s.token)
	}
}
