package tma

import (
	"encoding/json"
	"fmt"
)

// DefaultLanguage — язык пользователя, если Telegram его не передал.
const DefaultLanguage = "ru"

// Identity — пользователь Telegram из поля user. Необязательные поля — указатели,
// nil означает, что Telegram поле не прислал.
type Identity struct {
	ID           int64   `json:"id"`
	Username     *string `json:"username,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	LanguageCode *string `json:"language_code,omitempty"`
	IsBot        bool    `json:"is_bot,omitempty"`
	IsPremium    bool    `json:"is_premium,omitempty"`
	PhotoURL     *string `json:"photo_url,omitempty"`
}

// FirstNameOrEmpty возвращает имя или пустую строку.
func (i *Identity) FirstNameOrEmpty() string {
	return valueOr(i.FirstName, "")
}

// LastNameOrEmpty возвращает фамилию или пустую строку.
func (i *Identity) LastNameOrEmpty() string {
	return valueOr(i.LastName, "")
}

// Language возвращает language_code или DefaultLanguage.
func (i *Identity) Language() string {
	if i.LanguageCode == nil || *i.LanguageCode == "" {
		return DefaultLanguage
	}
	return *i.LanguageCode
}

// ExtractIdentity декодирует JSON из поля user.
func ExtractIdentity(p *Payload) (*Identity, error) {
	const op = "tma.ExtractIdentity"

	raw, ok := p.Get(UserKey)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%s: %w: no %s field", op, ErrMissingIdentity, UserKey)
	}

	// id читается отдельно, чтобы отличить отсутствие от нуля
	var doc struct {
		Identity
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %s is not valid json", op, ErrMalformedPayload, UserKey)
	}
	if doc.ID == nil || *doc.ID == 0 {
		return nil, fmt.Errorf("%s: %w: user id is required", op, ErrMissingIdentity)
	}

	identity := doc.Identity
	identity.ID = *doc.ID
	return &identity, nil
}

func valueOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
