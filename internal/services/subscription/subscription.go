// Package services содержит логику пробного периода, премиум-подписки и профиля аккаунта.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/tma-fitness/internal/cache"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/rabbitmq"
)

// DefaultTrialDays — длительность пробного периода по умолчанию.
const DefaultTrialDays = 3

var (
	// ErrTrialActive — пробный период уже идёт.
	ErrTrialActive = errors.New("trial already active")
	// ErrTrialEnded — пробный период уже закончился, повторно его не начать.
	ErrTrialEnded = errors.New("trial has already ended")
)

// UserRepository определяет операции хранилища над подпиской аккаунта.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	StartTrial(ctx context.Context, userUID string, endDate time.Time) (bool, error)
	EndTrial(ctx context.Context, userUID string) error
	GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*models.User, error)
	ExpireTrials(ctx context.Context, now time.Time) ([]*models.User, error)
	ExpirePremiums(ctx context.Context, now time.Time) ([]*models.User, error)
}

// Cache кеш профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// TrialInfo состояние пробного периода для клиента.
type TrialInfo struct {
	Status  models.TrialStatus `json:"trial_status"`
	Active  bool               `json:"trial_active"`
	EndDate *time.Time         `json:"trial_end_date"`
}

// SubscriptionService управляет пробным периодом и премиумом.
type SubscriptionService struct {
	repo       UserRepository
	cache      Cache
	publisher  EventPublisher
	log        *slog.Logger
	metrics    *metrics.Metrics
	trialDays  int
	profileTTL time.Duration
	now        func() time.Time
}

// NewSubscriptionService создаёт сервис. cache и publisher могут быть nil.
func NewSubscriptionService(repo UserRepository, cache Cache, publisher EventPublisher, log *slog.Logger,
	m *metrics.Metrics, trialDays int, profileTTL time.Duration) *SubscriptionService {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &SubscriptionService{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		log:        log,
		metrics:    m,
		trialDays:  trialDays,
		profileTTL: profileTTL,
		now:        time.Now,
	}
}

// StartTrial запускает пробный период. Начать можно только из NOT_STARTED.
func (s *SubscriptionService) StartTrial(ctx context.Context, userUID string) (*models.User, error) {
	const op = "services.StartTrial"

	user, err := s.CheckTrialStatus(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := trialStartable(user); err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	endDate := s.now().UTC().AddDate(0, 0, s.trialDays)
	started, err := s.repo.StartTrial(ctx, userUID, endDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err = s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !started {
		// статус успел смениться параллельным запросом
		if err := trialStartable(user); err != nil {
			return user, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: trial was not started", op)
	}

	s.invalidate(ctx, userUID)
	s.log.Info("trial started", slog.String("user_uid", userUID), slog.Time("trial_end_date", endDate))
	return user, nil
}

func trialStartable(user *models.User) error {
	switch user.TrialStatus {
	case models.TrialInProgress:
		return ErrTrialActive
	case models.TrialEnded:
		return ErrTrialEnded
	}
	return nil
}

// CheckTrialStatus загружает аккаунт и завершает истёкший пробный период.
func (s *SubscriptionService) CheckTrialStatus(ctx context.Context, userUID string) (*models.User, error) {
	const op = "services.CheckTrialStatus"
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err = s.RefreshTrial(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// RefreshTrial переводит пробный период в ENDED, если он истёк к текущему моменту.
func (s *SubscriptionService) RefreshTrial(ctx context.Context, user *models.User) (*models.User, error) {
	if !user.TrialExpired(s.now()) {
		return user, nil
	}
	if err := s.repo.EndTrial(ctx, user.UID); err != nil {
		return nil, err
	}
	user.TrialStatus = models.TrialEnded
	s.invalidate(ctx, user.UID)
	return user, nil
}

// TrialInfo возвращает состояние пробного периода.
func (s *SubscriptionService) TrialInfo(ctx context.Context, userUID string) (TrialInfo, error) {
	user, err := s.CheckTrialStatus(ctx, userUID)
	if err != nil {
		return TrialInfo{}, fmt.Errorf("services.TrialInfo: %w", err)
	}
	return TrialInfo{
		Status:  user.TrialStatus,
		Active:  user.TrialActive(s.now()),
		EndDate: user.TrialEndDate,
	}, nil
}

// GrantPremium включает премиум до until для аккаунта telegramID.
func (s *SubscriptionService) GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*models.User, error) {
	const op = "services.GrantPremium"
	if !until.After(s.now()) {
		return nil, fmt.Errorf("%s: premium_until %s is in the past", op, until.Format(time.RFC3339))
	}
	user, err := s.repo.GrantPremium(ctx, telegramID, until.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, user.UID)
	s.log.Info("premium granted", slog.String("user_uid", user.UID), slog.Time("premium_until", until))
	return user, nil
}

// ExpireSubscriptions завершает истёкшие пробные периоды и премиумы
// и публикует subscription.ended. Возвращает число затронутых аккаунтов.
func (s *SubscriptionService) ExpireSubscriptions(ctx context.Context) (int, error) {
	const op = "services.ExpireSubscriptions"
	now := s.now()

	trials, err := s.repo.ExpireTrials(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	premiums, err := s.repo.ExpirePremiums(ctx, now)
	if err != nil {
		return len(trials), fmt.Errorf("%s: %w", op, err)
	}

	s.notifyEnded(ctx, trials, models.KindTrial, now)
	s.notifyEnded(ctx, premiums, models.KindPremium, now)

	total := len(trials) + len(premiums)
	if total > 0 {
		s.log.Info("subscriptions expired", slog.Int("trials", len(trials)), slog.Int("premiums", len(premiums)))
	}
	return total, nil
}

func (s *SubscriptionService) notifyEnded(ctx context.Context, users []*models.User, kind models.SubscriptionKind, now time.Time) {
	for _, u := range users {
		s.invalidate(ctx, u.UID)
		s.metrics.SubscriptionsEnded.WithLabelValues(string(kind)).Inc()
		if s.publisher == nil {
			continue
		}
		event := models.SubscriptionEnded{
			UserUID:    u.UID,
			TelegramID: u.TelegramID,
			Kind:       kind,
			EndedAt:    now.UTC(),
		}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingSubscriptionEnded, event); err != nil {
			s.log.Error("failed to publish subscription ended", slog.String("user_uid", u.UID), sl.Err(err))
		}
	}
}

// Profile возвращает публичный профиль аккаунта, по возможности из кеша.
func (s *SubscriptionService) Profile(ctx context.Context, userUID string) (models.PublicUser, error) {
	const op = "services.Profile"
	key := cache.ProfileKey(userUID)

	if s.cache != nil {
		var cached models.PublicUser
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read profile from cache", slog.String("key", key), sl.Err(err))
		}
		if found && !cachedTrialElapsed(cached, s.now()) {
			return cached, nil
		}
	}

	user, err := s.CheckTrialStatus(ctx, userUID)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	profile := user.Public()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, profile, s.profileTTL); err != nil {
			s.log.Warn("failed to cache profile", slog.String("key", key), sl.Err(err))
		}
	}
	return profile, nil
}

func cachedTrialElapsed(p models.PublicUser, now time.Time) bool {
	return p.TrialStatus == models.TrialInProgress && p.TrialEndDate != nil && !p.TrialEndDate.After(now)
}

func (s *SubscriptionService) invalidate(ctx context.Context, userUID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.ProfileKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("user_uid", userUID), sl.Err(err))
	}
}
