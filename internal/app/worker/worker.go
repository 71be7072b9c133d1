// Package worker запускает фоновые задачи: завершение истёкших подписок
// и обработку сообщений биллинга о премиуме.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/tma-fitness/internal/cache"
	"github.com/magabrotheeeer/tma-fitness/internal/config"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/rabbitmq"
	subscriptionservice "github.com/magabrotheeeer/tma-fitness/internal/services/subscription"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

const (
	dbReadyRetries = 10
	dbReadyDelay   = 3 * time.Second
)

// App фоновый воркер.
type App struct {
	subscriptions *subscriptionservice.SubscriptionService
	premium       *PremiumHandler
	db            *storage.Storage
	cache         *cache.Cache
	conn          *amqp.Connection
	ch            *amqp.Channel
	cfg           *config.Config
	logger        *slog.Logger
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	for range dbReadyRetries {
		if err := storage.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dbReadyDelay):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New подключается к брокеру, базе и Redis.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, cfg.PremiumQueue); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	app := &App{db: db, conn: conn, ch: ch, cfg: cfg, logger: logger}

	var profileCache subscriptionservice.Cache
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, cached profiles expire by TTL", sl.Err(err))
		} else {
			app.cache = c
			profileCache = c
		}
	}

	m := metrics.NewNop()
	app.subscriptions = subscriptionservice.NewSubscriptionService(db, profileCache, rabbitmq.NewPublisher(ch),
		logger, m, cfg.TrialDays, cfg.ProfileTTL)
	app.premium = NewPremiumHandler(app.subscriptions, logger, m)
	return app, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает периодическую проверку подписок и чтение очереди биллинга.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, a.cfg.PremiumQueue, a.premium.Handle); err != nil {
		return err
	}
	a.logger.Info("worker started",
		slog.String("premium_queue", a.cfg.PremiumQueue),
		slog.Duration("sweep_interval", a.cfg.SweepInterval))

	RunSweeper(ctx, a.logger, a.subscriptions, a.cfg.SweepInterval)

	a.logger.Info("shutting down worker")
	closeResources(a.ch, a.conn, a.logger)
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
