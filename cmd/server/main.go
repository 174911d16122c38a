package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solshop/backend/internal/bus"
	"github.com/solshop/backend/internal/chain"
	"github.com/solshop/backend/internal/config"
	"github.com/solshop/backend/internal/inventory"
	"github.com/solshop/backend/internal/lock"
	"github.com/solshop/backend/internal/notify"
	"github.com/solshop/backend/internal/ops"
	"github.com/solshop/backend/internal/repository"
	"github.com/solshop/backend/internal/saga"
	"github.com/solshop/backend/internal/scheduler"
	"github.com/solshop/backend/internal/verifier"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	cred := &repository.Credentials{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.Name,
		MigrationsDirPath: cfg.Database.MigrationsPath,
	}
	repo, err := repository.NewRepository(cred)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(cred); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	mongoDB, err := notify.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())

	locks := lock.NewManager(redisClient, logger)
	cache := inventory.NewRedisCache(redisClient)
	invService := inventory.NewService(cache, locks, repo, logger)

	dispatcher := notify.NewDispatcher(ctx,
		notify.NewPushSender(cfg.Notify.GatewayURL, cfg.Notify.Timeout),
		notify.NewHistoryStore(mongoDB), 0, logger)
	defer dispatcher.Close()

	publisher := bus.NewPublisher(logger,
		cfg.Kafka.CompletedTopic, cfg.Kafka.FailedTopic, cfg.Kafka.Brokers...)
	defer publisher.Close()

	settlement := saga.NewSettlement(repo, repo, invService, dispatcher, logger)
	consumer := bus.NewConsumer(settlement, logger,
		cfg.Kafka.CompletedTopic, cfg.Kafka.FailedTopic, cfg.Kafka.ConsumerGroup,
		cfg.Kafka.Brokers...)
	defer consumer.Close()

	rpcClient := chain.NewRPCClient(cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
	vrf := verifier.New(rpcClient, repo, publisher,
		cfg.Chain.CompanyWallet, cfg.Chain.TokenMint, cfg.Payment.AmountTolerance, logger)

	wsClient := chain.NewWSClient(cfg.Chain.WebsocketURL, cfg.Chain.TokenMint,
		func(ctx context.Context, event chain.LogEvent) {
			if err := vrf.ProcessSignature(ctx, event.Signature, event.Logs); err != nil {
				logger.Error("failed to process pushed transaction",
					zap.String("signature", event.Signature), zap.Error(err))
			}
		}, logger)

	syncScheduler := scheduler.NewSyncScheduler(repo, invService, locks,
		cfg.Payment.FlushInterval, logger)
	if err := syncScheduler.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap inventory cache: %w", err)
	}

	sweeper := scheduler.NewSweeper(repo, settlement, locks,
		cfg.Payment.SweepInterval, cfg.Payment.PendingTimeout, logger)
	maintenance := scheduler.NewMaintenance(vrf.Signatures(), wsClient,
		cfg.Payment.SignatureCleanup, cfg.Chain.HealthCheck, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: ops.NewServer(invService, wsClient, logger).Router(),
	}

	go consumer.Run(ctx)
	go wsClient.Run(ctx)
	go sweeper.Run(ctx)
	go syncScheduler.Run(ctx)
	go maintenance.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("ops server failed", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}

	// Flush freshest totals before exit so a restart seeds from current data.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := syncScheduler.FlushNow(flushCtx); err != nil {
		logger.Error("final inventory flush failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
