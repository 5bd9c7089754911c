package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/tidwall/gjson"

	"gomarket_mdm/internal/marketplace/auth"
	"gomarket_mdm/pkg/logger"
)

// Caller отправляет один запрос к API продавца и возвращает сырой ответ.
type Caller interface {
	Call(ctx context.Context, kind Kind, keys []string, token auth.AuthToken) ([]byte, error)
}

type CallerFunc func(ctx context.Context, kind Kind, keys []string, token auth.AuthToken) ([]byte, error)

func (f CallerFunc) Call(ctx context.Context, kind Kind, keys []string, token auth.AuthToken) ([]byte, error) {
	return f(ctx, kind, keys, token)
}

const maxResponseSize = 8 << 20

// HTTPCaller ходит в seller API.
type HTTPCaller struct {
	client        *http.Client
	endpoint      string
	marketplaceID string
	sellerID      string
	log           logger.Logger
}

func NewHTTPCaller(client *http.Client, endpoint, marketplaceID, sellerID string, log logger.Logger) *HTTPCaller {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPCaller{
		client:        client,
		endpoint:      strings.TrimRight(endpoint, "/"),
		marketplaceID: marketplaceID,
		sellerID:      sellerID,
		log:           logger.OrDiscard(log),
	}
}

func (c *HTTPCaller) Call(ctx context.Context, kind Kind, keys []string, token auth.AuthToken) ([]byte, error) {
	target, err := c.buildURL(kind, keys)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if engine := auth.NewAccessTokenAuth(token); engine != nil {
		engine.SetApiKey(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure.Wrap(err, failure.WithCode(ErrCancelled), failure.Message("lookup cancelled"))
		}
		return nil, failure.Wrap(err, failure.WithCode(ErrTransportFailure),
			failure.Message(err.Error()),
			failure.Context{"kind": string(kind)},
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, failure.Wrap(err, failure.WithCode(ErrTransportFailure),
			failure.Message("failed to read response body: "+err.Error()),
		)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Log("Lookup %s for %d keys returned status %d", kind, len(keys), resp.StatusCode)
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *HTTPCaller) buildURL(kind Kind, keys []string) (string, error) {
	q := url.Values{}
	var path string
	switch kind {
	case KindPricing, KindOffers:
		path = "/products/pricing/v0/price"
		if kind == KindOffers {
			path = "/products/pricing/v0/competitivePrice"
		}
		q.Set("MarketplaceId", c.marketplaceID)
		q.Set("ItemType", "Asin")
		q.Set("Asins", strings.Join(keys, ","))
	case KindRestrictions:
		if len(keys) != 1 {
			return "", fmt.Errorf("restrictions lookup takes exactly one key, got %d", len(keys))
		}
		path = "/listings/2021-08-01/restrictions"
		q.Set("asin", keys[0])
		q.Set("sellerId", c.sellerID)
		q.Set("marketplaceIds", c.marketplaceID)
	default:
		return "", fmt.Errorf("unknown lookup kind %q", kind)
	}
	return c.endpoint + path + "?" + q.Encode(), nil
}

func statusError(status int, body []byte) error {
	reason := gjson.GetBytes(body, "errors.0.message").String()
	if reason == "" {
		reason = http.StatusText(status)
	}
	msg := fmt.Sprintf("marketplace returned status %d: %s", status, reason)
	ctx := failure.Context{"status": strconv.Itoa(status)}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure.New(auth.ErrAuthFailure, failure.Message(msg), ctx)
	case http.StatusTooManyRequests:
		return failure.New(ErrRateLimitExhausted, failure.Message(msg), ctx)
	}
	return failure.New(ErrTransportFailure, failure.Message(msg), ctx)
}
