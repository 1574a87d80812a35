package repository

import (
	"context"
	"time"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/models"
	sharedredis "github.com/hyprbank/ledger/shared/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const AccountViewKeyPrefix = "account:view:"

// accountCacheEntry is the Redis representation of an account. Unlike
// models.AccountView it serialises OwnerID, so ownership can be checked
// from a cache hit.
type accountCacheEntry struct {
	AccountNumber string    `json:"accountNumber"`
	OwnerID       int64     `json:"ownerId"`
	AccountType   string    `json:"accountType"`
	Status        string    `json:"status"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"createdTimestamp"`
}

// ViewCache is satisfied by *redis.ViewCache[accountCacheEntry].
type ViewCache interface {
	Get(ctx context.Context, key string) (*accountCacheEntry, bool)
	Set(ctx context.Context, key string, value *accountCacheEntry)
	Delete(ctx context.Context, key string)
}

// NewRedisViewCache builds the Redis-backed account view cache. Entries expire
// after ttl so a lost invalidation cannot pin a stale balance.
func NewRedisViewCache(client *goredis.Client, ttl time.Duration, log *zap.Logger) ViewCache {
	return sharedredis.NewViewCache[accountCacheEntry](client, AccountViewKeyPrefix, ttl, log)
}

// AccountReadRepository serves account views from Redis, falling back to the
// ledger store and warming the cache on every cold read. With a nil cache it
// reads straight from the store.
type AccountReadRepository struct {
	store ledger.Reader
	cache ViewCache
}

func NewAccountReadRepository(store ledger.Reader, cache ViewCache) *AccountReadRepository {
	if cache == nil {
		cache = noCache{}
	}
	return &AccountReadRepository{store: store, cache: cache}
}

func cacheEntryToView(e *accountCacheEntry) *models.AccountView {
	return &models.AccountView{
		AccountNumber: e.AccountNumber,
		OwnerID:       e.OwnerID,
		AccountType:   e.AccountType,
		Status:        e.Status,
		Balance:       e.Balance,
		CreatedAt:     e.CreatedAt,
	}
}

// GetByAccountNumber returns an AccountView, trying Redis first then the store.
func (r *AccountReadRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.AccountView, error) {
	if entry, ok := r.cache.Get(ctx, accountNumber); ok {
		return cacheEntryToView(entry), nil
	}

	acct, err := r.store.AccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	view := models.NewAccountView(acct)
	r.CacheAccountView(ctx, &view)
	return &view, nil
}

// ListByOwner always reads the store; the cache is keyed by account number only.
func (r *AccountReadRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.AccountView, error) {
	accounts, err := r.store.AccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]models.AccountView, len(accounts))
	for i := range accounts {
		views[i] = models.NewAccountView(&accounts[i])
		r.CacheAccountView(ctx, &views[i])
	}
	return views, nil
}

// CacheAccountView stores the Redis read model for an account. Only reads
// call it; writers invalidate instead.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	r.cache.Set(ctx, view.AccountNumber, &accountCacheEntry{
		AccountNumber: view.AccountNumber,
		OwnerID:       view.OwnerID,
		AccountType:   view.AccountType,
		Status:        view.Status,
		Balance:       view.Balance,
		CreatedAt:     view.CreatedAt,
	})
}

func (r *AccountReadRepository) InvalidateAccountView(ctx context.Context, accountNumber string) {
	r.cache.Delete(ctx, accountNumber)
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*accountCacheEntry, bool) { return nil, false }
func (noCache) Set(context.Context, string, *accountCacheEntry)        {}
func (noCache) Delete(context.Context, string)                         {}
