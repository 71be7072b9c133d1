// Package tma реализует проверку initData, которую Telegram передаёт в Mini App.
//
// Порядок проверки строгий: разбор payload, проверка подписи, проверка свежести
// и только затем извлечение данных пользователя. Пакет не хранит состояния,
// секрет бота передаётся явно при создании Verifier.
package tma

import "errors"

var (
	// ErrMalformedPayload — initData не удалось разобрать или в ней нет подписи.
	ErrMalformedPayload = errors.New("malformed init data")
	// ErrInvalidSignature — подпись отсутствует или не совпадает.
	ErrInvalidSignature = errors.New("invalid init data signature")
	// ErrExpired — auth_date старше допустимого окна.
	ErrExpired = errors.New("init data expired")
	// ErrMissingIdentity — в initData нет пользователя или его id.
	ErrMissingIdentity = errors.New("missing user identity")
	// ErrNotConfigured — токен бота не задан.
	ErrNotConfigured = errors.New("telegram bot token is not configured")
)
