// Package services содержит вход в Mini App по initData и проверку выданных токенов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/tma"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/rabbitmq"
)

// ErrInvalidToken — токен доступа не прошёл проверку.
var ErrInvalidToken = errors.New("invalid access token")

// InitDataValidator проверяет initData и возвращает пользователя Telegram.
type InitDataValidator interface {
	Validate(raw string, now time.Time) (*tma.Identity, error)
}

// AccountReconciler находит или создаёт аккаунт пользователя Telegram.
type AccountReconciler interface {
	Reconcile(ctx context.Context, identity *tma.Identity) (*models.User, bool, error)
}

// TrialRefresher завершает истёкший пробный период перед ответом клиенту.
type TrialRefresher interface {
	RefreshTrial(ctx context.Context, user *models.User) (*models.User, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Result итог успешного входа.
type Result struct {
	User    *models.User
	Tokens  jwt.TokenPair
	Created bool
}

// AuthService выполняет вход по initData: проверка, сопоставление аккаунта, выдача токенов.
type AuthService struct {
	validator InitDataValidator
	accounts  AccountReconciler
	trials    TrialRefresher
	jwtMaker  jwt.Maker
	publisher EventPublisher
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewAuthService создаёт AuthService. trials и publisher могут быть nil.
func NewAuthService(validator InitDataValidator, accounts AccountReconciler, trials TrialRefresher,
	jwtMaker jwt.Maker, publisher EventPublisher, log *slog.Logger, m *metrics.Metrics) *AuthService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &AuthService{
		validator: validator,
		accounts:  accounts,
		trials:    trials,
		jwtMaker:  jwtMaker,
		publisher: publisher,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// AuthenticateTMA проверяет initData и выдаёт пару токенов для аккаунта пользователя.
// Ошибки проверки оборачивают sentinel-ы пакета tma.
func (s *AuthService) AuthenticateTMA(ctx context.Context, raw string) (*Result, error) {
	const op = "services.AuthenticateTMA"

	identity, err := s.validator.Validate(raw, s.now())
	if err != nil {
		s.metrics.AuthAttempts.WithLabelValues(outcome(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(sl.Op(op), slog.Int64("telegram_id", identity.ID))

	user, created, err := s.accounts.Reconcile(ctx, identity)
	if err != nil {
		s.metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.trials != nil {
		if user, err = s.trials.RefreshTrial(ctx, user); err != nil {
			s.metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	tokens, err := s.jwtMaker.GenerateTokenPair(user.UID, user.TelegramID)
	if err != nil {
		s.metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if created {
		s.metrics.AccountsCreated.Inc()
		s.publishRegistered(ctx, log, user)
	}
	s.metrics.AuthAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info("user authenticated", slog.String("user_uid", user.UID), slog.Bool("created", created))

	return &Result{User: user, Tokens: tokens, Created: created}, nil
}

func (s *AuthService) publishRegistered(ctx context.Context, log *slog.Logger, user *models.User) {
	if s.publisher == nil {
		return
	}
	event := models.UserRegistered{
		UserUID:      user.UID,
		TelegramID:   user.TelegramID,
		LanguageCode: user.LanguageCode,
		CreatedAt:    user.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingUserRegistered, event); err != nil {
		log.Error("failed to publish user registered", sl.Err(err))
	}
}

// ValidateToken проверяет access-токен и возвращает его claims.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	return NewTokenVerifier(s.jwtMaker).ValidateToken(ctx, token)
}

// TokenVerifier проверяет access-токены без обращения к хранилищу.
type TokenVerifier struct {
	jwtMaker jwt.Maker
}

// NewTokenVerifier создаёт TokenVerifier.
func NewTokenVerifier(jwtMaker jwt.Maker) *TokenVerifier {
	return &TokenVerifier{jwtMaker: jwtMaker}
}

// ValidateToken проверяет подпись, срок и тип токена.
func (v *TokenVerifier) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	claims, err := v.jwtMaker.ParseToken(token, jwt.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, tma.ErrMalformedPayload):
		return metrics.OutcomeMalformed
	case errors.Is(err, tma.ErrInvalidSignature):
		return metrics.OutcomeInvalidSignature
	case errors.Is(err, tma.ErrExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, tma.ErrMissingIdentity):
		return metrics.OutcomeMissingIdentity
	default:
		return metrics.OutcomeError
	}
}
