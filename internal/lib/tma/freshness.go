package tma

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultMaxAge — окно свежести initData по умолчанию.
const DefaultMaxAge = 24 * time.Hour

// IssuedAt возвращает auth_date. Отсутствующее или нечисловое значение
// трактуется как начало эпохи.
func IssuedAt(p *Payload) time.Time {
	raw, ok := p.Get(AuthDateKey)
	if !ok {
		return time.Unix(0, 0)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Unix(0, 0)
	}
	return time.Unix(sec, 0)
}

// CheckFreshness возвращает ErrExpired, если initData старше maxAge.
// maxAge <= 0 отключает проверку.
func CheckFreshness(p *Payload, maxAge time.Duration, now time.Time) error {
	const op = "tma.CheckFreshness"
	if maxAge <= 0 {
		return nil
	}
	age := now.Unix() - IssuedAt(p).Unix()
	if age > int64(maxAge/time.Second) {
		return fmt.Errorf("%s: %w", op, ErrExpired)
	}
	return nil
}
