package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"gomarket_mdm/internal/marketplace/auth"
	"gomarket_mdm/pkg/logger"
)

// LiveLookup получает данные от маркетплейса через TokenCache и Caller.
type LiveLookup struct {
	tokens *auth.TokenCache
	creds  auth.Credentials
	caller Caller
	log    logger.Logger
}

func NewLiveLookup(tokens *auth.TokenCache, creds auth.Credentials, caller Caller, log logger.Logger) *LiveLookup {
	return &LiveLookup{tokens: tokens, creds: creds, caller: caller, log: logger.OrDiscard(log)}
}

func (l *LiveLookup) Lookup(ctx context.Context, kind Kind, items []Item) ([]LookupResult, error) {
	token, err := l.tokens.GetToken(ctx, l.creds)
	if err != nil {
		return nil, err
	}

	keys := lo.Map(items, func(it Item, _ int) string { return it.Key })
	body, err := l.caller.Call(ctx, kind, keys, token)
	if err != nil {
		if failure.Is(err, auth.ErrAuthFailure) {
			// токен отозван раньше срока
			l.tokens.Invalidate(l.creds)
		}
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, failure.New(ErrMalformedResponse,
			failure.Message(fmt.Sprintf("marketplace %s response is not valid JSON", kind)),
		)
	}
	root := gjson.ParseBytes(body)

	if kind == KindRestrictions {
		return decodeRestrictions(root, keys)
	}
	return decodeItems(root, kind, keys)
}

func decodeItems(root gjson.Result, kind Kind, keys []string) ([]LookupResult, error) {
	payload := root.Get("payload")
	if !payload.IsArray() {
		return nil, failure.New(ErrMalformedResponse,
			failure.Message(fmt.Sprintf("marketplace %s response has no payload array", kind)),
		)
	}

	byKey := make(map[string]gjson.Result)
	payload.ForEach(func(_, entry gjson.Result) bool {
		key := entryKey(entry)
		if key != "" {
			if _, seen := byKey[key]; !seen {
				byKey[key] = entry
			}
		}
		return true
	})

	results := make([]LookupResult, len(keys))
	for i, key := range keys {
		entry, ok := byKey[key]
		if !ok {
			results[i] = failedResult(key, failure.New(ErrItemFailure,
				failure.Message("marketplace returned no result for "+key),
			))
			continue
		}
		if status := entry.Get("status").String(); !strings.EqualFold(status, "Success") {
			results[i] = failedResult(key, failure.New(ErrItemFailure,
				failure.Message(entryError(entry, status)),
			))
			continue
		}
		results[i] = LookupResult{Key: key, Success: true, Payload: json.RawMessage(entry.Raw)}
	}
	return results, nil
}

func entryKey(entry gjson.Result) string {
	for _, field := range []string{"ASIN", "SellerSKU", "key"} {
		if v := entry.Get(field).String(); v != "" {
			return v
		}
	}
	return ""
}

func entryError(entry gjson.Result, status string) string {
	for _, path := range []string{"errors.0.message", "error.message"} {
		if msg := entry.Get(path).String(); msg != "" {
			return msg
		}
	}
	if status == "" {
		return "marketplace result has no status"
	}
	return "marketplace returned status " + status
}

type restrictionVerdict struct {
	Listable bool     `json:"listable"`
	Reasons  []string `json:"reasons"`
}

func decodeRestrictions(root gjson.Result, keys []string) ([]LookupResult, error) {
	restrictions := root.Get("restrictions")
	if !restrictions.IsArray() {
		return nil, failure.New(ErrMalformedResponse,
			failure.Message("marketplace restrictions response has no restrictions array"),
		)
	}

	verdict := restrictionVerdict{Listable: len(restrictions.Array()) == 0, Reasons: []string{}}
	restrictions.ForEach(func(_, r gjson.Result) bool {
		r.Get("reasons").ForEach(func(_, reason gjson.Result) bool {
			if msg := reason.Get("message").String(); msg != "" {
				verdict.Reasons = append(verdict.Reasons, msg)
			}
			return true
		})
		return true
	})

	raw, err := json.Marshal(verdict)
	if err != nil {
		return nil, err
	}
	results := make([]LookupResult, len(keys))
	for i, key := range keys {
		results[i] = LookupResult{Key: key, Success: true, Payload: raw}
	}
	return results, nil
}
