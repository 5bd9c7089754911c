package auth

import (
	"context"
	"sync"
	"time"

	"github.com/morikuni/failure/v2"
	"golang.org/x/sync/singleflight"

	"gomarket_mdm/metrics"
	"gomarket_mdm/pkg/logger"
)

const DefaultSafetyMargin = 60 * time.Second

type Authorizer interface {
	Authorize(ctx context.Context, creds Credentials) (Grant, error)
}

type AuthorizerFunc func(ctx context.Context, creds Credentials) (Grant, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, creds Credentials) (Grant, error) {
	return f(ctx, creds)
}

// TokenCache хранит access token и обновляет его лениво. Создаётся один раз на процесс
// и передаётся клиентам. Параллельные обновления для одних учётных данных сливаются в один вызов.
type TokenCache struct {
	authorizer Authorizer
	margin     time.Duration
	log        logger.Logger
	now        func() time.Time

	mu     sync.RWMutex
	tokens map[string]AuthToken
	group  singleflight.Group
}

func NewTokenCache(authorizer Authorizer, margin time.Duration, log logger.Logger) *TokenCache {
	if margin < 0 {
		margin = DefaultSafetyMargin
	}
	return &TokenCache{
		authorizer: authorizer,
		margin:     margin,
		log:        logger.OrDiscard(log),
		now:        time.Now,
		tokens:     make(map[string]AuthToken),
	}
}

// SetClock подменяет часы.
func (c *TokenCache) SetClock(now func() time.Time) *TokenCache {
	if now != nil {
		c.now = now
	}
	return c
}

// GetToken возвращает действующий токен, при необходимости обновив его.
// Ошибка обновления возвращается только текущему вызову; в кэш ничего не попадает.
func (c *TokenCache) GetToken(ctx context.Context, creds Credentials) (AuthToken, error) {
	if err := creds.Validate(); err != nil {
		return AuthToken{}, err
	}
	key := creds.identity()

	if tok, ok := c.cached(key); ok {
		return tok, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if tok, ok := c.cached(key); ok {
			return tok, nil
		}
		// обновление не должно обрываться, если отменили только первого из ждущих
		return c.refresh(context.WithoutCancel(ctx), key, creds)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return AuthToken{}, res.Err
		}
		return res.Val.(AuthToken), nil
	case <-ctx.Done():
		return AuthToken{}, ctx.Err()
	}
}

// Invalidate выбрасывает токен, например после 401 от API.
func (c *TokenCache) Invalidate(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, creds.identity())
}

func (c *TokenCache) cached(key string) (AuthToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[key]
	if !ok || !c.now().Before(tok.ExpiresAt) {
		return AuthToken{}, false
	}
	return tok, true
}

func (c *TokenCache) refresh(ctx context.Context, key string, creds Credentials) (AuthToken, error) {
	c.log.Log("Refreshing access token for client %s", key)
	grant, err := c.authorizer.Authorize(ctx, creds)
	if err == nil && grant.AccessToken == "" {
		err = failure.New(ErrAuthFailure, failure.Message("authorization server returned no access_token"))
	}
	metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		c.log.Log("Token refresh failed for client %s: %v", key, err)
		if CodeOf(err) == "" {
			err = failure.Wrap(err, failure.WithCode(ErrAuthFailure),
				failure.Message("token refresh failed: "+err.Error()),
			)
		}
		return AuthToken{}, err
	}

	tok := AuthToken{
		Value:     grant.AccessToken,
		ExpiresAt: c.now().Add(grant.ExpiresIn - c.effectiveMargin(key, grant.ExpiresIn)),
	}
	c.mu.Lock()
	c.tokens[key] = tok
	c.mu.Unlock()
	return tok, nil
}

// effectiveMargin: запас не больше половины срока жизни токена, иначе токен
// истекал бы сразу и каждый вызов шёл бы на сервер авторизации.
func (c *TokenCache) effectiveMargin(key string, ttl time.Duration) time.Duration {
	if ttl > c.margin {
		return c.margin
	}
	if ttl <= 0 {
		c.log.Log("Token for client %s has no lifetime (expires_in=%v); it will be refreshed on every call", key, ttl)
		return 0
	}
	c.log.Log("Token lifetime %v for client %s is not above the safety margin %v; using %v", ttl, key, c.margin, ttl/2)
	return ttl / 2
}
