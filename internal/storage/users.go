package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/tma-fitness/internal/models"
)

const userColumns = `uid, telegram_id, telegram_username, first_name, last_name, language_code,
			      is_bot, password_hash, trial_status, trial_end_date, is_premium,
			      premium_end_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                    models.User
		username             sql.NullString
		trialEnd, premiumEnd sql.NullTime
		trialStatus          string
	)
	if err := row.Scan(&u.UID, &u.TelegramID, &username, &u.FirstName, &u.LastName, &u.LanguageCode,
		&u.IsBot, &u.PasswordHash, &trialStatus, &trialEnd, &u.IsPremium,
		&premiumEnd, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.TrialStatus = models.TrialStatus(trialStatus)
	if username.Valid {
		u.TelegramUsername = &username.String
	}
	if trialEnd.Valid {
		u.TrialEndDate = &trialEnd.Time
	}
	if premiumEnd.Valid {
		u.PremiumEndDate = &premiumEnd.Time
	}
	return &u, nil
}

func (s *Storage) queryUser(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *Storage) queryUsers(ctx context.Context, op, query string, args ...any) ([]*models.User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetUserByTelegramID возвращает аккаунт по telegram_id.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.queryUser(ctx, "storage.GetUserByTelegramID",
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
}

// GetUser возвращает аккаунт по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	return s.queryUser(ctx, "storage.GetUser",
		`SELECT `+userColumns+` FROM users WHERE uid = $1`, userUID)
}

// CreateUser сохраняет новый аккаунт. Пустой UID генерируется, даты создания выставляет база.
// Если аккаунт с таким telegram_id уже есть, возвращается ErrUserExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if user.UID == "" {
		user.UID = uuid.NewString()
	}

	query := `INSERT INTO users (uid, telegram_id, telegram_username, first_name, last_name,
			      language_code, is_bot, password_hash, trial_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + userColumns
	created, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.UID, user.TelegramID, user.TelegramUsername, user.FirstName, user.LastName,
		user.LanguageCode, user.IsBot, user.PasswordHash, string(user.TrialStatus)))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// UpdateProfile записывает синхронизированные из Telegram поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) error {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET telegram_username = $1, first_name = $2, last_name = $3,
			      language_code = $4, is_bot = $5, updated_at = NOW()
			  WHERE uid = $6`
	result, err := s.DB.ExecContext(ctx, query,
		upd.TelegramUsername, upd.FirstName, upd.LastName, upd.LanguageCode, upd.IsBot, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, result)
}

// StartTrial переводит пробный период в IN_PROGRESS, только если он ещё не начинался.
// Возвращает false, если статус уже другой.
func (s *Storage) StartTrial(ctx context.Context, userUID string, endDate time.Time) (bool, error) {
	const op = "storage.StartTrial"
	query := `UPDATE users
			  SET trial_status = $1, trial_end_date = $2, updated_at = NOW()
			  WHERE uid = $3 AND trial_status = $4`
	result, err := s.DB.ExecContext(ctx, query,
		string(models.TrialInProgress), endDate, userUID, string(models.TrialNotStarted))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// EndTrial помечает идущий пробный период как законченный.
func (s *Storage) EndTrial(ctx context.Context, userUID string) error {
	const op = "storage.EndTrial"
	query := `UPDATE users
			  SET trial_status = $1, updated_at = NOW()
			  WHERE uid = $2 AND trial_status = $3`
	if _, err := s.DB.ExecContext(ctx, query,
		string(models.TrialEnded), userUID, string(models.TrialInProgress)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GrantPremium включает премиум до until и возвращает обновлённый аккаунт.
func (s *Storage) GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*models.User, error) {
	return s.queryUser(ctx, "storage.GrantPremium",
		`UPDATE users
		 SET is_premium = TRUE, premium_end_date = $1, updated_at = NOW()
		 WHERE telegram_id = $2
		 RETURNING `+userColumns, until, telegramID)
}

// ExpireTrials завершает все пробные периоды, истёкшие к now, и возвращает затронутые аккаунты.
func (s *Storage) ExpireTrials(ctx context.Context, now time.Time) ([]*models.User, error) {
	return s.queryUsers(ctx, "storage.ExpireTrials",
		`UPDATE users
		 SET trial_status = $1, updated_at = NOW()
		 WHERE trial_status = $2 AND trial_end_date <= $3
		 RETURNING `+userColumns,
		string(models.TrialEnded), string(models.TrialInProgress), now)
}

// ExpirePremiums снимает премиум с аккаунтов, у которых он истёк к now.
func (s *Storage) ExpirePremiums(ctx context.Context, now time.Time) ([]*models.User, error) {
	return s.queryUsers(ctx, "storage.ExpirePremiums",
		`UPDATE users
		 SET is_premium = FALSE, updated_at = NOW()
		 WHERE is_premium AND premium_end_date <= $1
		 RETURNING `+userColumns, now)
}

func expectOneRow(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
