package tma

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// HashKey — поле с подписью, не участвует в data-check-string.
	HashKey = "hash"
	// AuthDateKey — время выдачи initData в секундах unix.
	AuthDateKey = "auth_date"
	// UserKey — JSON с данными пользователя.
	UserKey = "user"
	// WrapperKey — параметр запуска Mini App, внутри которого лежит initData.
	WrapperKey = "tgWebAppData"
)

// Field — одна пара key=value из initData.
type Field struct {
	Key   string
	Value string
}

// Payload — разобранная initData. Порядок полей сохраняется, ключи уникальны.
type Payload struct {
	fields []Field
	index  map[string]int
}

// Get возвращает значение поля и признак его наличия.
func (p *Payload) Get(key string) (string, bool) {
	i, ok := p.index[key]
	if !ok {
		return "", false
	}
	return p.fields[i].Value, true
}

// Fields возвращает копию полей в порядке получения.
func (p *Payload) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Len — количество полей.
func (p *Payload) Len() int {
	return len(p.fields)
}

// Parse разбирает сырую строку initData.
//
// Поддерживаются два вида входа: «чистая» initData (user=...&auth_date=...&hash=...)
// и строка параметров запуска, где initData лежит в tgWebAppData. Если на верхнем
// уровне уже есть hash, строка считается чистой даже при наличии tgWebAppData.
// Обёртка раскрывается ровно один раз.
func Parse(raw string) (*Payload, error) {
	const op = "tma.Parse"

	outer, err := parseFields(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := outer.Get(HashKey); ok {
		return outer, nil
	}

	wrapped, ok := outer.Get(WrapperKey)
	if !ok {
		return nil, fmt.Errorf("%s: %w: no %s or %s field", op, ErrMalformedPayload, HashKey, WrapperKey)
	}
	inner, err := parseFields(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, WrapperKey, err)
	}
	if _, ok := inner.Get(HashKey); !ok {
		return nil, fmt.Errorf("%s: %w: no %s inside %s", op, ErrMalformedPayload, HashKey, WrapperKey)
	}
	return inner, nil
}

// parseFields декодирует пары, разделённые '&'. Пустые значения сохраняются,
// повторяющийся ключ — ошибка ErrMalformedPayload.
func parseFields(raw string) (*Payload, error) {
	p := &Payload{index: make(map[string]int)}
	for segment := range strings.SplitSeq(raw, "&") {
		if segment == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(segment, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: bad key encoding", ErrMalformedPayload)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: bad value encoding for %q", ErrMalformedPayload, key)
		}
		if _, dup := p.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMalformedPayload, key)
		}
		p.index[key] = len(p.fields)
		p.fields = append(p.fields, Field{Key: key, Value: value})
	}
	return p, nil
}
