package auth

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

	"gomarket_mdm/pkg/logger"
)

// HTTPAuthorizer обменивает refresh token на access token (grant_type=refresh_token).
type HTTPAuthorizer struct {
	client  *http.Client
	authURL string
	log     logger.Logger
}

func NewHTTPAuthorizer(client *http.Client, authURL string, log logger.Logger) *HTTPAuthorizer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAuthorizer{client: client, authURL: authURL, log: logger.OrDiscard(log)}
}

func (a *HTTPAuthorizer) Authorize(ctx context.Context, creds Credentials) (Grant, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Grant{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return Grant{}, failure.Wrap(err, failure.WithCode(ErrAuthFailure),
			failure.Message("authorization request failed: "+err.Error()),
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Grant{}, failure.Wrap(err, failure.WithCode(ErrAuthFailure),
			failure.Message("failed to read authorization response"),
		)
	}

	if resp.StatusCode != http.StatusOK {
		reason := gjson.GetBytes(body, "error_description").String()
		if reason == "" {
			reason = gjson.GetBytes(body, "error").String()
		}
		return Grant{}, failure.New(ErrAuthFailure,
			failure.Message(fmt.Sprintf("authorization rejected with status %d: %s", resp.StatusCode, reason)),
			failure.Context{"status": strconv.Itoa(resp.StatusCode)},
		)
	}

	if !gjson.ValidBytes(body) {
		return Grant{}, failure.New(ErrAuthFailure, failure.Message("authorization response is not valid JSON"))
	}
	parsed := gjson.ParseBytes(body)
	grant := Grant{
		AccessToken: parsed.Get("access_token").String(),
		ExpiresIn:   time.Duration(parsed.Get("expires_in").Int()) * time.Second,
	}
	a.log.Log("Received access token valid for %v", grant.ExpiresIn)
	return grant, nil
}
