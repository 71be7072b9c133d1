// Package health проверяет доступность зависимостей сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tma-fitness/internal/http/response"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
)

const checkTimeout = 2 * time.Second

// Pinger проверяет доступность одной зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler обрабатывает GET /health.
type Handler struct {
	log    *slog.Logger
	checks map[string]Pinger
}

// New создает Handler. Пустые значения в checks пропускаются.
func New(log *slog.Logger, checks map[string]Pinger) *Handler {
	h := &Handler{log: log, checks: make(map[string]Pinger, len(checks))}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 503 {object} response.Response{data=map[string]string}
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	result := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("health check failed", slog.String("dependency", name), sl.Err(err))
			result[name] = "down"
			healthy = false
			continue
		}
		result[name] = "up"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Code: "unavailable", Data: result})
		return
	}
	render.JSON(w, r, response.OKWithData(result))
}
