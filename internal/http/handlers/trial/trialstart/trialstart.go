// Package trialstart запускает пробный период текущего аккаунта.
package trialstart

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
	subscriptionservice "github.com/magabrotheeeer/tma-fitness/internal/services/subscription"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// Service запускает пробный период.
type Service interface {
	StartTrial(ctx context.Context, userUID string) (*models.User, error)
}

// Handler обрабатывает POST /trial/start.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// ServeHTTP godoc
// @Summary Запуск пробного периода
// @Description Пробный период можно начать один раз.
// @Tags Trial
// @Produce  json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=models.PublicUser}
// @Failure 400 {object} response.ErrorResponse "Пробный период уже идёт или закончился"
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /trial/start [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.start"

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

	user, err := h.svc.StartTrial(r.Context(), userUID)
	switch {
	case errors.Is(err, subscriptionservice.ErrTrialActive):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeTrialActive, "trial already active"))
		return
	case errors.Is(err, subscriptionservice.ErrTrialEnded):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeTrialEnded, "trial has already ended"))
		return
	case errors.Is(err, storage.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.CodeNotFound, "user not found"))
		return
	case err != nil:
		log.Error("failed to start trial", slog.String("user_uid", userUID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, "failed to start trial"))
		return
	}

	log.Info("trial started", slog.String("user_uid", userUID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(user.Public()))
}
