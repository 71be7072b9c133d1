// Package profile отдаёт профиль текущего аккаунта.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tma-fitness/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tma-fitness/internal/http/response"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// Service возвращает публичный профиль аккаунта.
type Service interface {
	Profile(ctx context.Context, userUID string) (models.PublicUser, error)
}

// Handler обрабатывает GET /profile.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// ServeHTTP godoc
// @Summary Профиль текущего пользователя
// @Tags Profile
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.PublicUser}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /profile [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile"

	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.CodeUnauthorized, "unauthorized"))
		return
	}

	profile, err := h.svc.Profile(r.Context(), userUID)
	if errors.Is(err, storage.ErrUserNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.CodeNotFound, "user not found"))
		return
	}
	if err != nil {
		log.Error("failed to load profile", slog.String("user_uid", userUID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, "failed to load profile"))
		return
	}

	render.JSON(w, r, response.OKWithData(profile))
}
