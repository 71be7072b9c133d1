// Package metrics содержит метрики Prometheus сервисов Mini App.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы проверки initData для метки outcome.
const (
	OutcomeSuccess          = "success"
	OutcomeMalformed        = "malformed_payload"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeExpired          = "expired"
	OutcomeMissingIdentity  = "missing_identity"
	OutcomeError            = "error"
)

// Metrics набор метрик, зарегистрированных в одном реестре.
type Metrics struct {
	// AuthAttempts попытки входа через initData по исходу
	AuthAttempts *prometheus.CounterVec
	// AccountsCreated созданные при первом входе аккаунты
	AccountsCreated prometheus.Counter
	// SubscriptionsEnded закончившиеся пробные периоды и премиумы
	SubscriptionsEnded *prometheus.CounterVec
	// PremiumGrants обработанные сообщения биллинга по статусу
	PremiumGrants *prometheus.CounterVec
	// RequestDuration время обработки HTTP-запросов
	RequestDuration *prometheus.HistogramVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tma_auth_attempts_total",
			Help: "The total number of initData authentication attempts by outcome",
		}, []string{"outcome"}),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tma_accounts_created_total",
			Help: "The total number of accounts created on first login",
		}),
		SubscriptionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tma_subscriptions_ended_total",
			Help: "The total number of ended trials and premiums",
		}, []string{"kind"}),
		PremiumGrants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tma_premium_grants_total",
			Help: "The total number of processed billing messages by status",
		}, []string{"status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tma_http_request_duration_seconds",
			Help:    "The HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// NewNop возвращает метрики в собственном реестре, который никто не отдаёт наружу.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
