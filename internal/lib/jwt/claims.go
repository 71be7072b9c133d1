// Package jwt выпускает пару access/refresh токенов для аккаунта,
// прошедшего проверку initData, и разбирает их обратно.
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenType различает access и refresh токены.
type TokenType string

const (
	// AccessToken — короткоживущий токен для запросов к API.
	AccessToken TokenType = "access"
	// RefreshToken — долгоживущий токен для получения новой пары.
	RefreshToken TokenType = "refresh"
)

// Claims — данные, которые хранятся в токене.
// Subject содержит UID аккаунта, ID — уникальный идентификатор токена.
type Claims struct {
	TelegramID           int64     `json:"telegram_id"` // id пользователя в Telegram
	TokenType            TokenType `json:"token_type"`  // access или refresh
	jwt.RegisteredClaims           // iat, exp, sub, jti
}

// UserUID возвращает UID аккаунта из sub.
func (c *Claims) UserUID() string {
	return c.Subject
}

// TokenPair — результат выдачи сессии.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
