package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hyprbank/ledger/internal/account"
	"github.com/hyprbank/ledger/internal/command"
	"github.com/hyprbank/ledger/internal/handler"
	"github.com/hyprbank/ledger/internal/movement"
	"github.com/hyprbank/ledger/internal/projection"
	"github.com/hyprbank/ledger/internal/query"
	"github.com/hyprbank/ledger/internal/repository"
	"github.com/hyprbank/ledger/shared/config"
	"github.com/hyprbank/ledger/shared/events"
	"github.com/hyprbank/ledger/shared/logger"
	"github.com/hyprbank/ledger/shared/middleware"
	sharedredis "github.com/hyprbank/ledger/shared/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			return runServe(cmd.Context(), cfg, log, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "create demo users and accounts on startup and log their tokens")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config, log *zap.Logger, seed bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openBackend(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer closeStore()

	if seed {
		result, err := seedDemo(ctx, store, cfg, log)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		for _, s := range result {
			log.Info("demo user ready",
				zap.String("email", s.user.Email),
				zap.String("role", s.user.Role),
				zap.Int("accounts", len(s.accounts)),
				zap.String("token", s.token),
			)
		}
	}

	// Redis is optional: without it there is no read cache and no event stream.
	var (
		publisher command.EventPublisher
		viewCache repository.ViewCache
	)
	var redis *sharedredis.Client
	if cfg.RedisEnabled() {
		redis, err = sharedredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redis.Close()
		publisher = events.NewPublisher(redis.Client, events.LedgerEventsStream)
		viewCache = repository.NewRedisViewCache(redis.Client, cfg.Redis.ViewTTL, log)
	} else {
		log.Info("redis not configured; running without view cache and event stream")
	}

	// --- CQRS wiring ---
	readRepo := repository.NewAccountReadRepository(store, viewCache)

	var views command.AccountViewCache
	if viewCache != nil {
		views = readRepo
	}
	commandSvc := command.NewTransactionCommandService(
		store,
		account.NewResolver(),
		movement.NewRecorder(time.Now),
		command.NewTransferResponseAssembler(cfg.Ledger.RecentMovements),
		publisher,
		views,
		log,
	)
	accountQuerySvc := query.NewAccountQueryService(readRepo, store)
	movementQuerySvc := query.NewMovementQueryService(store)

	if redis != nil {
		projector := projection.NewAccountViewProjector(readRepo, log)
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    projection.ConsumerGroup,
			Consumer: "projector-" + uuid.NewString(),
			Stream:   events.LedgerEventsStream,
			Handler:  projector.Handle,
		}, log)
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("subscriber stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(log))
	handler.RegisterRoutes(router, []byte(cfg.JWT.Secret),
		handler.NewTransactionHandler(commandSvc, log),
		handler.NewAccountHandler(accountQuerySvc, movementQuerySvc, log),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("hyprbank starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Ledger.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
