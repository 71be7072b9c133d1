package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/metrics"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// Статусы обработки сообщения биллинга для метки status.
const (
	grantStatusOK          = "ok"
	grantStatusInvalid     = "invalid"
	grantStatusUnknownUser = "unknown_user"
	grantStatusError       = "error"
)

// Expirer завершает истёкшие пробные периоды и премиумы.
type Expirer interface {
	ExpireSubscriptions(ctx context.Context) (int, error)
}

// PremiumGranter включает премиум по сообщению биллинга.
type PremiumGranter interface {
	GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*models.User, error)
}

// RunSweeper вызывает ExpireSubscriptions сразу и затем каждые interval до отмены ctx.
func RunSweeper(ctx context.Context, log *slog.Logger, expirer Expirer, interval time.Duration) {
	const op = "worker.RunSweeper"
	log = log.With(sl.Op(op))

	sweep := func() {
		n, err := expirer.ExpireSubscriptions(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("failed to expire subscriptions", sl.Err(err))
			}
			return
		}
		if n > 0 {
			log.Info("sweep finished", slog.Int("expired", n))
		}
	}

	if interval <= 0 {
		interval = time.Minute
	}
	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// PremiumHandler обрабатывает сообщения очереди billing.premium.
type PremiumHandler struct {
	granter PremiumGranter
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPremiumHandler создает PremiumHandler.
func NewPremiumHandler(granter PremiumGranter, log *slog.Logger, m *metrics.Metrics) *PremiumHandler {
	if m == nil {
		m = metrics.NewNop()
	}
	return &PremiumHandler{granter: granter, log: log, metrics: m, now: time.Now}
}

// Handle разбирает сообщение и включает премиум. Битые, устаревшие сообщения
// и неизвестные аккаунты подтверждаются без повтора. Ошибка означает повтор.
func (h *PremiumHandler) Handle(ctx context.Context, body []byte) error {
	const op = "worker.PremiumHandler.Handle"

	var msg models.PremiumGranted
	if err := json.Unmarshal(body, &msg); err != nil || msg.TelegramID == 0 || msg.PremiumUntil.IsZero() {
		h.metrics.PremiumGrants.WithLabelValues(grantStatusInvalid).Inc()
		h.log.Warn("dropping invalid billing message", sl.Op(op), slog.Int("size", len(body)))
		return nil
	}

	if !msg.PremiumUntil.After(h.now()) {
		h.metrics.PremiumGrants.WithLabelValues(grantStatusInvalid).Inc()
		h.log.Warn("dropping outdated billing message", sl.Op(op), slog.Int64("telegram_id", msg.TelegramID))
		return nil
	}

	_, err := h.granter.GrantPremium(ctx, msg.TelegramID, msg.PremiumUntil)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		h.metrics.PremiumGrants.WithLabelValues(grantStatusUnknownUser).Inc()
		h.log.Warn("premium for unknown account", sl.Op(op), slog.Int64("telegram_id", msg.TelegramID))
		return nil
	case err != nil:
		h.metrics.PremiumGrants.WithLabelValues(grantStatusError).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	h.metrics.PremiumGrants.WithLabelValues(grantStatusOK).Inc()
	return nil
}
