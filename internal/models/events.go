package models

import "time"

// UserRegistered публикуется после первого входа пользователя.
type UserRegistered struct {
	UserUID      string    `json:"user_uid"`
	TelegramID   int64     `json:"telegram_id"`
	LanguageCode string    `json:"language_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubscriptionKind — что именно закончилось.
type SubscriptionKind string

const (
	// KindTrial — пробный период.
	KindTrial SubscriptionKind = "trial"
	// KindPremium — премиум-подписка.
	KindPremium SubscriptionKind = "premium"
)

// SubscriptionEnded публикуется планировщиком, когда закончился пробный период или премиум.
type SubscriptionEnded struct {
	UserUID    string           `json:"user_uid"`
	TelegramID int64            `json:"telegram_id"`
	Kind       SubscriptionKind `json:"kind"`
	EndedAt    time.Time        `json:"ended_at"`
}

// PremiumGranted приходит из биллинга в очередь billing.premium.
type PremiumGranted struct {
	TelegramID   int64     `json:"telegram_id"`
	PremiumUntil time.Time `json:"premium_until"`
}
