package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/config"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "seed-secret"
	cfg.JWT.TTL = time.Hour
	cfg.Ledger.Store = config.StoreMemory
	return cfg
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "seed"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	cfg := testConfig()

	result, err := seedDemo(ctx, store, cfg, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, result, len(demoUsers))

	byEmail := map[string]seeded{}
	for _, s := range result {
		byEmail[s.user.Email] = s
	}

	admin := byEmail["admin@hyprbank.local"]
	assert.Equal(t, models.RoleAdmin, admin.user.Role)
	assert.Empty(t, admin.accounts)

	ana := byEmail["ana@hyprbank.local"]
	require.Len(t, ana.accounts, 2)
	total := ana.accounts[0].Balance.Add(ana.accounts[1].Balance)
	assert.Equal(t, "1820.50", total.StringFixed(2))

	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(ana.token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWT.Secret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, ana.user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	cfg := testConfig()

	first, err := seedDemo(ctx, store, cfg, zap.NewNop())
	require.NoError(t, err)
	second, err := seedDemo(ctx, store, cfg, zap.NewNop())
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].user.ID, second[i].user.ID)
		assert.Len(t, second[i].accounts, len(first[i].accounts))
	}
}

func TestPrintSeeded(t *testing.T) {
	result, err := seedDemo(context.Background(), ledger.NewMemoryStore(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	printSeeded(&buf, result)
	out := buf.String()
	assert.Contains(t, out, seedPassword)
	assert.Contains(t, out, "Luis Perez <luis@hyprbank.local>")
	assert.Contains(t, out, "800.00")
}

func TestOpenDemoAccountNumberFailure(t *testing.T) {
	orig := newAccountNumber
	t.Cleanup(func() { newAccountNumber = orig })
	newAccountNumber = func() (string, error) { return "", errors.New("entropy exhausted") }

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	owner := &models.User{FirstName: "Ana", LastName: "Diaz", Email: "ana@hyprbank.local"}
	require.NoError(t, store.CreateUser(ctx, owner))

	err := openDemoAccount(ctx, store, owner.ID, seedAccount{models.AccountTypeSavings, "10.00"})
	assert.ErrorContains(t, err, "entropy exhausted")

	accounts, err := store.AccountsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestOpenDemoAccountRetriesTakenNumber(t *testing.T) {
	orig := newAccountNumber
	t.Cleanup(func() { newAccountNumber = orig })
	numbers := []string{"01000001", "01000001", "01000002"}
	newAccountNumber = func() (string, error) {
		n := numbers[0]
		numbers = numbers[1:]
		return n, nil
	}

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	owner := &models.User{FirstName: "Ana", LastName: "Diaz", Email: "ana@hyprbank.local"}
	require.NoError(t, store.CreateUser(ctx, owner))
	seedAcc := seedAccount{models.AccountTypeSavings, "10.00"}
	require.NoError(t, openDemoAccount(ctx, store, owner.ID, seedAcc))
	require.NoError(t, openDemoAccount(ctx, store, owner.ID, seedAcc))

	accounts, err := store.AccountsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "01000002", accounts[1].AccountNumber)
}
