// Package models содержит доменную модель аккаунта пользователя Mini App:
// данные профиля из Telegram и состояние пробного периода и премиум-подписки.
package models

import "time"

// TrialStatus — состояние пробного периода.
type TrialStatus string

const (
	// TrialNotStarted — пробный период ещё не запускался.
	TrialNotStarted TrialStatus = "NOT_STARTED"
	// TrialInProgress — пробный период идёт.
	TrialInProgress TrialStatus = "IN_PROGRESS"
	// TrialEnded — пробный период закончился.
	TrialEnded TrialStatus = "ENDED"
)

// User — аккаунт, один на telegram_id.
type User struct {
	UID              string      // Внутренний идентификатор аккаунта
	TelegramID       int64       // id пользователя в Telegram, неизменяем
	TelegramUsername *string     // username в Telegram, nil если не задан
	FirstName        string      // Имя
	LastName         string      // Фамилия
	LanguageCode     string      // Язык интерфейса
	IsBot            bool        // Аккаунт бота
	PasswordHash     string      // Хеш внутреннего секрета, не используется для входа
	TrialStatus      TrialStatus // Состояние пробного периода
	TrialEndDate     *time.Time  // Окончание пробного периода
	IsPremium        bool        // Активна ли премиум-подписка
	PremiumEndDate   *time.Time  // Окончание премиум-подписки
	CreatedAt        time.Time   // Дата создания, неизменна
	UpdatedAt        time.Time
}

// TrialExpired сообщает, что идущий пробный период уже истёк к моменту now.
func (u *User) TrialExpired(now time.Time) bool {
	return u.TrialStatus == TrialInProgress && u.TrialEndDate != nil && !u.TrialEndDate.After(now)
}

// TrialActive сообщает, что пробный период идёт и ещё не истёк.
func (u *User) TrialActive(now time.Time) bool {
	return u.TrialStatus == TrialInProgress && u.TrialEndDate != nil && u.TrialEndDate.After(now)
}

// PremiumExpired сообщает, что премиум-подписка истекла к моменту now.
func (u *User) PremiumExpired(now time.Time) bool {
	return u.IsPremium && u.PremiumEndDate != nil && !u.PremiumEndDate.After(now)
}

// ProfileUpdate — изменяемые поля профиля, которые синхронизируются из Telegram.
type ProfileUpdate struct {
	TelegramUsername *string
	FirstName        string
	LastName         string
	LanguageCode     string
	IsBot            bool
}

// PublicUser — поля аккаунта, которые отдаются клиенту.
type PublicUser struct {
	UID            string      `json:"id"`
	TelegramID     int64       `json:"telegram_id"`
	Username       *string     `json:"username"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	LanguageCode   string      `json:"language_code"`
	IsBot          bool        `json:"is_bot"`
	IsPremium      bool        `json:"is_premium"`
	PremiumEndDate *time.Time  `json:"premium_end_date"`
	TrialStatus    TrialStatus `json:"trial_status"`
	TrialEndDate   *time.Time  `json:"trial_end_date"`
}

// Public возвращает публичное представление аккаунта без секрета.
func (u *User) Public() PublicUser {
	return PublicUser{
		UID:            u.UID,
		TelegramID:     u.TelegramID,
		Username:       u.TelegramUsername,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		LanguageCode:   u.LanguageCode,
		IsBot:          u.IsBot,
		IsPremium:      u.IsPremium,
		PremiumEndDate: u.PremiumEndDate,
		TrialStatus:    u.TrialStatus,
		TrialEndDate:   u.TrialEndDate,
	}
}
