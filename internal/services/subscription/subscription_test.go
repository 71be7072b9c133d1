package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tma-fitness/internal/cache"
	"github.com/magabrotheeeer/tma-fitness/internal/config"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/rabbitmq"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) StartTrial(ctx context.Context, userUID string, endDate time.Time) (bool, error) {
	args := m.Called(ctx, userUID, endDate)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) EndTrial(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

func (m *RepoMock) GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*models.User, error) {
	args := m.Called(ctx, telegramID, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ExpireTrials(ctx context.Context, now time.Time) ([]*models.User, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *RepoMock) ExpirePremiums(ctx context.Context, now time.Time) ([]*models.User, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo UserRepository, publisher EventPublisher) (*SubscriptionService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	svc := NewSubscriptionService(repo, c, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics.NewNop(), 0, time.Minute)
	svc.now = func() time.Time { return testNow }
	return svc, mr
}

func userWithTrial(status models.TrialStatus, end *time.Time) *models.User {
	return &models.User{UID: "uid-1", TelegramID: 42, TrialStatus: status, TrialEndDate: end}
}

func TestStartTrial(t *testing.T) {
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)
	wantEnd := testNow.AddDate(0, 0, DefaultTrialDays)

	tests := []struct {
		name    string
		setup   func(r *RepoMock)
		wantErr error
	}{
		{
			name: "starts from not started",
			setup: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialNotStarted, nil), nil).Once()
				r.On("StartTrial", mock.Anything, "uid-1", wantEnd).Return(true, nil).Once()
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &wantEnd), nil).Once()
			},
		},
		{
			name: "already active",
			setup: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &future), nil).Once()
			},
			wantErr: ErrTrialActive,
		},
		{
			name: "already ended",
			setup: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialEnded, &past), nil).Once()
			},
			wantErr: ErrTrialEnded,
		},
		{
			name: "elapsed trial is ended first",
			setup: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &past), nil).Once()
				r.On("EndTrial", mock.Anything, "uid-1").Return(nil).Once()
			},
			wantErr: ErrTrialEnded,
		},
		{
			name: "lost race to concurrent start",
			setup: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialNotStarted, nil), nil).Once()
				r.On("StartTrial", mock.Anything, "uid-1", wantEnd).Return(false, nil).Once()
				r.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &future), nil).Once()
			},
			wantErr: ErrTrialActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setup(repo)
			svc, _ := newTestService(t, repo, nil)

			user, err := svc.StartTrial(context.Background(), "uid-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.TrialInProgress, user.TrialStatus)
				assert.Equal(t, wantEnd, *user.TrialEndDate)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestStartTrial_UserNotFound(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "missing").Return(nil, storage.ErrUserNotFound).Once()
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.StartTrial(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestTrialInfo(t *testing.T) {
	future := testNow.Add(time.Hour)
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &future), nil).Once()
	svc, _ := newTestService(t, repo, nil)

	info, err := svc.TrialInfo(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, models.TrialInProgress, info.Status)
	assert.Equal(t, &future, info.EndDate)
}

func TestGrantPremium(t *testing.T) {
	until := testNow.Add(30 * 24 * time.Hour)
	repo := new(RepoMock)
	repo.On("GrantPremium", mock.Anything, int64(42), until).
		Return(&models.User{UID: "uid-1", TelegramID: 42, IsPremium: true, PremiumEndDate: &until}, nil).Once()
	svc, mr := newTestService(t, repo, nil)
	require.NoError(t, mr.Set(cache.ProfileKey("uid-1"), `{"id":"uid-1"}`))

	user, err := svc.GrantPremium(context.Background(), 42, until)
	require.NoError(t, err)
	assert.True(t, user.IsPremium)
	assert.False(t, mr.Exists(cache.ProfileKey("uid-1")), "profile cache must be invalidated")
	repo.AssertExpectations(t)
}

func TestGrantPremium_PastDateRejected(t *testing.T) {
	repo := new(RepoMock)
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.GrantPremium(context.Background(), 42, testNow.Add(-time.Second))
	assert.Error(t, err)
	repo.AssertNotCalled(t, "GrantPremium", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpireSubscriptions_PublishesEvents(t *testing.T) {
	repo := new(RepoMock)
	publisher := new(PublisherMock)
	repo.On("ExpireTrials", mock.Anything, testNow).Return([]*models.User{{UID: "uid-1", TelegramID: 1}}, nil).Once()
	repo.On("ExpirePremiums", mock.Anything, testNow).Return([]*models.User{{UID: "uid-2", TelegramID: 2}}, nil).Once()
	publisher.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionEnded, models.SubscriptionEnded{
		UserUID: "uid-1", TelegramID: 1, Kind: models.KindTrial, EndedAt: testNow,
	}).Return(nil).Once()
	publisher.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionEnded, models.SubscriptionEnded{
		UserUID: "uid-2", TelegramID: 2, Kind: models.KindPremium, EndedAt: testNow,
	}).Return(errors.New("broker down")).Once()

	svc, _ := newTestService(t, repo, publisher)

	n, err := svc.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestExpireSubscriptions_StorageError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ExpireTrials", mock.Anything, testNow).Return(nil, errors.New("db down")).Once()
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.ExpireSubscriptions(context.Background())
	assert.Error(t, err)
	repo.AssertNotCalled(t, "ExpirePremiums", mock.Anything, mock.Anything)
}

func TestProfile_CachesResult(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialNotStarted, nil), nil).Once()
	svc, mr := newTestService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.Profile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", first.UID)
	assert.True(t, mr.Exists(cache.ProfileKey("uid-1")))

	second, err := svc.Profile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	repo.AssertNumberOfCalls(t, "GetUser", 1)
}

func TestProfile_StaleTrialIsReloaded(t *testing.T) {
	past := testNow.Add(-time.Minute)
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialInProgress, &past), nil).Once()
	repo.On("EndTrial", mock.Anything, "uid-1").Return(nil).Once()
	svc, mr := newTestService(t, repo, nil)

	stale := `{"id":"uid-1","telegram_id":42,"trial_status":"IN_PROGRESS","trial_end_date":"` +
		past.Format(time.RFC3339) + `"}`
	require.NoError(t, mr.Set(cache.ProfileKey("uid-1"), stale))

	profile, err := svc.Profile(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrialEnded, profile.TrialStatus)
	repo.AssertExpectations(t)
}

func TestProfile_CacheDownFallsBackToStorage(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "uid-1").Return(userWithTrial(models.TrialNotStarted, nil), nil).Once()
	svc, mr := newTestService(t, repo, nil)
	mr.Close()

	profile, err := svc.Profile(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", profile.UID)
}
