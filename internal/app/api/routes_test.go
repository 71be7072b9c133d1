package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tma-fitness/internal/http/handlers/health"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	authservice "github.com/magabrotheeeer/tma-fitness/internal/services/auth"
	subscriptionservice "github.com/magabrotheeeer/tma-fitness/internal/services/subscription"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) AuthenticateTMA(ctx context.Context, raw string) (*authservice.Result, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authservice.Result), args.Error(1)
}

func (m *AuthMock) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.Claims), args.Error(1)
}

type SubscriptionsMock struct{ mock.Mock }

func (m *SubscriptionsMock) Profile(ctx context.Context, userUID string) (models.PublicUser, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(models.PublicUser), args.Error(1)
}

func (m *SubscriptionsMock) TrialInfo(ctx context.Context, userUID string) (subscriptionservice.TrialInfo, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(subscriptionservice.TrialInfo), args.Error(1)
}

func (m *SubscriptionsMock) StartTrial(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *SubscriptionsMock) CheckTrialStatus(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type upPinger struct{}

func (upPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *AuthMock, *SubscriptionsMock) {
	t.Helper()
	auth := new(AuthMock)
	subs := new(SubscriptionsMock)
	registry := prometheus.NewRegistry()

	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Auth:          auth,
		Subscriptions: subs,
		Health:        map[string]health.Pinger{"postgres": upPinger{}},
		Metrics:       metrics.New(registry),
		Gatherer:      registry,
	})
	return r, auth, subs
}

func TestRoutes_TMAAuthIsPublic(t *testing.T) {
	router, auth, _ := newTestRouter(t)
	auth.On("AuthenticateTMA", mock.Anything, "user=x&hash=y").Return(&authservice.Result{
		User:   &models.User{UID: "uid-1", TelegramID: 1},
		Tokens: jwt.TokenPair{Access: "a", Refresh: "r"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/tma", nil)
	req.Header.Set("Authorization", "tma user=x&hash=y")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	auth.AssertExpectations(t)
}

func TestRoutes_ProtectedRequireBearer(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, target := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/profile"},
		{http.MethodGet, "/api/v1/trial"},
		{http.MethodPost, "/api/v1/trial/start"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(target.method, target.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target.path)
	}
}

func TestRoutes_ProfileWithBearer(t *testing.T) {
	router, auth, subs := newTestRouter(t)
	auth.On("ValidateToken", mock.Anything, "access").Return(&jwt.Claims{
		TelegramID:       1,
		TokenType:        jwt.AccessToken,
		RegisteredClaims: gojwt.RegisteredClaims{Subject: "uid-1"},
	}, nil).Once()
	subs.On("CheckTrialStatus", mock.Anything, "uid-1").Return(&models.User{UID: "uid-1"}, nil).Once()
	subs.On("Profile", mock.Anything, "uid-1").Return(models.PublicUser{UID: "uid-1"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer access")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	auth.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tma_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/health"`)
}
