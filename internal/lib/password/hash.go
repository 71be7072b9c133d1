// Package password хранит внутренний секрет аккаунта.
//
// Аккаунты входят только через initData, поэтому секрет генерируется случайно,
// хранится как bcrypt-хеш и никогда не выдаётся наружу.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// SecretLength — длина случайного секрета аккаунта.
const SecretLength = 50

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GetHash возвращает bcrypt‑хэш строки.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш со строкой. nil — совпадение.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RandomSecret генерирует строку из alphabet через crypto/rand.
func RandomSecret(length int) (string, error) {
	const op = "password.RandomSecret"
	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// NewUnusableHash генерирует секрет длины SecretLength и возвращает только его хеш.
func NewUnusableHash() (string, error) {
	secret, err := RandomSecret(SecretLength)
	if err != nil {
		return "", err
	}
	return GetHash(secret)
}
