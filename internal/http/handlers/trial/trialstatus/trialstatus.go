// Package trialstatus отдаёт состояние пробного периода.
package trialstatus

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
	subscriptionservice "github.com/magabrotheeeer/tma-fitness/internal/services/subscription"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// Service возвращает состояние пробного периода.
type Service interface {
	TrialInfo(ctx context.Context, userUID string) (subscriptionservice.TrialInfo, error)
}

// Handler обрабатывает GET /trial.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// ServeHTTP godoc
// @Summary Состояние пробного периода
// @Tags Trial
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=subscriptionservice.TrialInfo}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /trial [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.status"

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

	info, err := h.svc.TrialInfo(r.Context(), userUID)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.CodeNotFound, "user not found"))
		return
	case err != nil:
		log.Error("failed to get trial status", slog.String("user_uid", userUID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, "failed to get trial status"))
		return
	}

	render.JSON(w, r, response.OKWithData(info))
}
