// Package services сопоставляет пользователя Telegram с локальным аккаунтом.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/tma-fitness/internal/cache"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/password"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/tma"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	"github.com/magabrotheeeer/tma-fitness/internal/storage"
)

// UserRepository описывает операции хранилища, нужные для сопоставления.
type UserRepository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) error
}

// ProfileCache сбрасывает закешированный профиль.
type ProfileCache interface {
	Invalidate(ctx context.Context, key string) error
}

// Reconciler находит или создаёт аккаунт по telegram_id и синхронизирует профиль.
type Reconciler struct {
	users UserRepository
	cache ProfileCache
	log   *slog.Logger
	hash  func() (string, error)
}

// NewReconciler создаёт Reconciler. cache может быть nil.
func NewReconciler(users UserRepository, cache ProfileCache, log *slog.Logger) *Reconciler {
	return &Reconciler{
		users: users,
		cache: cache,
		log:   log,
		hash:  password.NewUnusableHash,
	}
}

// Reconcile возвращает аккаунт пользователя identity и признак того, что он только что создан.
// Повторный вход с теми же данными ничего не пишет.
func (r *Reconciler) Reconcile(ctx context.Context, identity *tma.Identity) (*models.User, bool, error) {
	const op = "account.Reconcile"
	log := r.log.With(sl.Op(op), slog.Int64("telegram_id", identity.ID))

	user, err := r.users.GetUserByTelegramID(ctx, identity.ID)
	switch {
	case err == nil:
		updated, err := r.sync(ctx, user, identity)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		return updated, false, nil
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	created, err := r.create(ctx, identity)
	if err == nil {
		log.Info("account created", slog.String("user_uid", created.UID))
		return created, true, nil
	}
	if !errors.Is(err, storage.ErrUserExists) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	// параллельный первый вход уже создал аккаунт
	log.Debug("account created concurrently, re-reading")
	user, err = r.users.GetUserByTelegramID(ctx, identity.ID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := r.sync(ctx, user, identity)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return updated, false, nil
}

func (r *Reconciler) create(ctx context.Context, identity *tma.Identity) (*models.User, error) {
	hash, err := r.hash()
	if err != nil {
		return nil, err
	}
	return r.users.CreateUser(ctx, models.User{
		TelegramID:       identity.ID,
		TelegramUsername: identity.Username,
		FirstName:        identity.FirstNameOrEmpty(),
		LastName:         identity.LastNameOrEmpty(),
		LanguageCode:     identity.Language(),
		IsBot:            identity.IsBot,
		PasswordHash:     hash,
		TrialStatus:      models.TrialNotStarted,
	})
}

// sync записывает изменившиеся поля профиля одним обновлением.
func (r *Reconciler) sync(ctx context.Context, user *models.User, identity *tma.Identity) (*models.User, error) {
	upd, changed := Diff(user, identity)
	if !changed {
		return user, nil
	}
	if err := r.users.UpdateProfile(ctx, user.UID, upd); err != nil {
		return nil, err
	}

	user.TelegramUsername = upd.TelegramUsername
	user.FirstName = upd.FirstName
	user.LastName = upd.LastName
	user.LanguageCode = upd.LanguageCode
	user.IsBot = upd.IsBot

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, cache.ProfileKey(user.UID)); err != nil {
			r.log.Warn("failed to invalidate profile cache", slog.String("user_uid", user.UID), sl.Err(err))
		}
	}
	return user, nil
}

// Diff сравнивает профиль аккаунта с данными Telegram.
// Возвращает новые значения и true, если хотя бы одно поле отличается.
func Diff(user *models.User, identity *tma.Identity) (models.ProfileUpdate, bool) {
	upd := models.ProfileUpdate{
		TelegramUsername: identity.Username,
		FirstName:        identity.FirstNameOrEmpty(),
		LastName:         identity.LastNameOrEmpty(),
		LanguageCode:     identity.Language(),
		IsBot:            identity.IsBot,
	}
	changed := !equalPtr(user.TelegramUsername, upd.TelegramUsername) ||
		user.FirstName != upd.FirstName ||
		user.LastName != upd.LastName ||
		user.LanguageCode != upd.LanguageCode ||
		user.IsBot != upd.IsBot
	return upd, changed
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
