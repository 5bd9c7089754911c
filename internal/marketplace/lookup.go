package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind: вид запроса к маркетплейсу.
type Kind string

const (
	KindPricing      Kind = "pricing"
	KindOffers       Kind = "offers"
	KindRestrictions Kind = "restrictions"
)

// Batchable сообщает, можно ли отправлять несколько ключей одним вызовом.
func (k Kind) Batchable() bool {
	return k == KindPricing || k == KindOffers
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPricing, KindOffers, KindRestrictions:
		return k, nil
	}
	return "", fmt.Errorf("unknown lookup kind %q (expected pricing, offers or restrictions)", s)
}

// Item: ключ (ASIN или SKU) с необязательной категорией для симуляции.
type Item struct {
	Key      string `json:"key"`
	Category string `json:"category,omitempty"`
}

func itemsFromKeys(keys []string) []Item {
	items := make([]Item, len(keys))
	for i, k := range keys {
		items[i] = Item{Key: k}
	}
	return items
}

// LookupResult: результат по одному ключу. Simulated == true означает,
// что данные получены не от маркетплейса и не являются авторитетными.
type LookupResult struct {
	Key            string          `json:"key"`
	Success        bool            `json:"success"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Simulated      bool            `json:"simulated"`
	Rationale      string          `json:"rationale,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
}

func failedResult(key string, err error) LookupResult {
	return LookupResult{
		Key:       key,
		Success:   false,
		Error:     Describe(err),
		ErrorCode: CodeOf(err),
	}
}

// Lookup выполняет один вызов для набора ключей.
// Ошибка означает отказ всего вызова; отказы по отдельным ключам возвращаются в результатах.
type Lookup interface {
	Lookup(ctx context.Context, kind Kind, items []Item) ([]LookupResult, error)
}

type LookupFunc func(ctx context.Context, kind Kind, items []Item) ([]LookupResult, error)

func (f LookupFunc) Lookup(ctx context.Context, kind Kind, items []Item) ([]LookupResult, error) {
	return f(ctx, kind, items)
}
