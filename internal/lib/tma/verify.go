package tma

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// webAppDataKey — константный ключ, которым Telegram получает секрет из токена бота.
const webAppDataKey = "WebAppData"

// Verifier проверяет подпись initData секретом конкретного бота.
type Verifier struct {
	secretKey []byte
}

// NewVerifier создаёт Verifier. Пустой токен — ошибка конфигурации ErrNotConfigured.
func NewVerifier(botToken string) (*Verifier, error) {
	if botToken == "" {
		return nil, ErrNotConfigured
	}
	return &Verifier{secretKey: deriveSecret(botToken)}, nil
}

// Verify сравнивает полученный hash с вычисленным за постоянное время.
func (v *Verifier) Verify(p *Payload) error {
	const op = "tma.Verify"

	received, ok := p.Get(HashKey)
	if !ok || received == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	expected := v.sign(DataCheckString(p))
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	return nil
}

func (v *Verifier) sign(dataCheckString string) string {
	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}

// DataCheckString собирает строку для подписи: все поля, кроме hash,
// отсортированные по ключу, в виде key=value через перевод строки.
func DataCheckString(p *Payload) string {
	signable := make([]Field, 0, p.Len())
	for _, f := range p.fields {
		if f.Key == HashKey {
			continue
		}
		signable = append(signable, f)
	}
	// сортировка по ключу, а не по строке "key=value": "a-b" < "a=" но "a" < "a-b"
	sort.Slice(signable, func(i, j int) bool { return signable[i].Key < signable[j].Key })

	var b strings.Builder
	for i, f := range signable {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Sign вычисляет hash для набора полей так же, как это делает Telegram.
// Нужен для тестов и локальной отладки клиента.
func Sign(fields []Field, botToken string) string {
	p := &Payload{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		p.index[f.Key] = len(p.fields)
		p.fields = append(p.fields, f)
	}
	v := &Verifier{secretKey: deriveSecret(botToken)}
	return v.sign(DataCheckString(p))
}

// deriveSecret: secret_key = HMAC_SHA256(key="WebAppData", msg=bot_token).
func deriveSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}
