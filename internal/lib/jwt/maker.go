package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrWrongTokenType — токен валиден, но другого типа (например, refresh вместо access).
var ErrWrongTokenType = errors.New("wrong token type")

// Maker описывает выдачу и проверку токенов.
type Maker interface {
	// GenerateTokenPair выпускает access и refresh токены для аккаунта.
	GenerateTokenPair(userUID string, telegramID int64) (TokenPair, error)
	// ParseToken проверяет подпись, срок действия и тип токена.
	ParseToken(tokenStr string, tokenType TokenType) (*Claims, error)
}

// MakerImpl подписывает токены HS256 секретным ключом.
type MakerImpl struct {
	secretKey  []byte        // Секретный ключ для подписи токенов.
	accessTTL  time.Duration // Время жизни access токена.
	refreshTTL time.Duration // Время жизни refresh токена.
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, accessTTL, refreshTTL time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateTokenPair выпускает пару токенов с общим временем выдачи.
func (j *MakerImpl) GenerateTokenPair(userUID string, telegramID int64) (TokenPair, error) {
	const op = "jwt.GenerateTokenPair"
	now := time.Now()

	access, err := j.sign(userUID, telegramID, AccessToken, now, j.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := j.sign(userUID, telegramID, RefreshToken, now, j.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (j *MakerImpl) sign(userUID string, telegramID int64, tokenType TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		TelegramID: telegramID,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ParseToken парсит токен, проверяет подпись, срок и тип.
func (j *MakerImpl) ParseToken(tokenStr string, tokenType TokenType) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return j.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongTokenType)
	}
	return claims, nil
}
