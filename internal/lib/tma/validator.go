package tma

import (
	"time"
)

// Validator объединяет шаги проверки initData в фиксированном порядке:
// разбор, подпись, свежесть, пользователь.
type Validator struct {
	verifier *Verifier
	maxAge   time.Duration
}

// NewValidator создаёт Validator для токена бота и окна свежести.
func NewValidator(botToken string, maxAge time.Duration) (*Validator, error) {
	verifier, err := NewVerifier(botToken)
	if err != nil {
		return nil, err
	}
	return &Validator{verifier: verifier, maxAge: maxAge}, nil
}

// MaxAge возвращает настроенное окно свежести.
func (v *Validator) MaxAge() time.Duration {
	return v.maxAge
}

// Validate проверяет initData и возвращает пользователя.
// Ошибки оборачивают один из sentinel-ов пакета.
func (v *Validator) Validate(raw string, now time.Time) (*Identity, error) {
	payload, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := v.verifier.Verify(payload); err != nil {
		return nil, err
	}
	if err := CheckFreshness(payload, v.maxAge, now); err != nil {
		return nil, err
	}
	return ExtractIdentity(payload)
}
