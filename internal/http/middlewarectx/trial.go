package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tma-fitness/internal/http/response"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// TrialChecker завершает истёкший пробный период аккаунта.
type TrialChecker interface {
	CheckTrialStatus(ctx context.Context, userUID string) (*models.User, error)
}

// CheckTrialMiddleware перед каждым запросом авторизованного пользователя
// переводит истёкший пробный период в ENDED. Ошибки хранилища не прерывают запрос.
func CheckTrialMiddleware(log *slog.Logger, trials TrialChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userUID, ok := UserUIDFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.CodeUnauthorized, "user identification missing"))
				return
			}

			if _, err := trials.CheckTrialStatus(r.Context(), userUID); err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error(response.CodeUnauthorized, "account not found"))
					return
				}
				log.Error("failed to check trial status", slog.String("user_uid", userUID), sl.Err(err))
			}

			next.ServeHTTP(w, r)
		})
	}
}
