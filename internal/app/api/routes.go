// Package api собирает HTTP-приложение: маршруты, middleware и зависимости.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/auth/tmaauth"
	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/health"
	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/profile"
	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/trial/trialstart"
	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/trial/trialstatus"
	"github.com/magabrotheeeer/tma-fitness/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
)

// AuthService вход по initData и проверка access-токенов.
type AuthService interface {
	tmaauth.Service
	middlewarectx.TokenValidator
}

// SubscriptionService профиль и пробный период.
type SubscriptionService interface {
	profile.Service
	trialstatus.Service
	trialstart.Service
	middlewarectx.TrialChecker
}

// Deps зависимости маршрутов.
type Deps struct {
	Auth          AuthService
	Subscriptions SubscriptionService
	Health        map[string]health.Pinger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware(deps.Metrics),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/tma", tmaauth.New(logger, deps.Auth).ServeHTTP)
		r.Get("/health", health.New(logger, deps.Health).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Auth, logger))
			r.Use(middlewarectx.CheckTrialMiddleware(logger, deps.Subscriptions))
			r.Get("/profile", profile.New(logger, deps.Subscriptions).ServeHTTP)
			r.Get("/trial", trialstatus.New(logger, deps.Subscriptions).ServeHTTP)
			r.Post("/trial/start", trialstart.New(logger, deps.Subscriptions).ServeHTTP)
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
