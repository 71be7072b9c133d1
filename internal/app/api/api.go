package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	_ "github.com/magabrotheeeer/tma-fitness/docs" // swagger
	"github.com/magabrotheeeer/tma-fitness/internal/cache"
	"github.com/magabrotheeeer/tma-fitness/internal/config"
	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/health"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/tma"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/migrations"
	"github.com/magabrotheeeer/tma-fitness/internal/rabbitmq"
	accountservice "github.com/magabrotheeeer/tma-fitness/internal/services/account"
	authservice "github.com/magabrotheeeer/tma-fitness/internal/services/auth"
	subscriptionservice "github.com/magabrotheeeer/tma-fitness/internal/services/subscription"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-приложение Mini App.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New поднимает зависимости и собирает роутер. Redis и RabbitMQ необязательны:
// без Redis профиль читается из базы, без RabbitMQ события не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "api.New"

	validator, err := tma.NewValidator(cfg.BotToken, cfg.InitDataTTL())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db}

	// nil-интерфейсы вместо nil-указателей: сервисы проверяют зависимость на nil.
	var profileCache subscriptionservice.Cache
	var accountCache accountservice.ProfileCache
	checks := map[string]health.Pinger{"postgres": db}
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, profile cache disabled", sl.Err(err))
		} else {
			app.cache = c
			profileCache, accountCache = c, c
			checks["redis"] = c
		}
	}

	var publisher authservice.EventPublisher
	var subscriptionPublisher subscriptionservice.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", sl.Err(err))
		} else if ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues()); err != nil {
			logger.Warn("failed to setup rabbitmq channel, events disabled", sl.Err(err))
			_ = conn.Close()
		} else {
			app.conn, app.ch = conn, ch
			p := rabbitmq.NewPublisher(ch)
			publisher, subscriptionPublisher = p, p
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	subscriptions := subscriptionservice.NewSubscriptionService(db, profileCache, subscriptionPublisher, logger, m,
		cfg.TrialDays, cfg.ProfileTTL)
	reconciler := accountservice.NewReconciler(db, accountCache, logger)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	auth := authservice.NewAuthService(validator, reconciler, subscriptions, jwtMaker, publisher, logger, m)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Auth:          auth,
		Subscriptions: subscriptions,
		Health:        checks,
		Metrics:       m,
		Gatherer:      registry,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
