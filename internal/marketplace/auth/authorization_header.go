package auth

import (
	"net/http"
)

type AuthEngine interface {
	GetApiKey() string
	SetApiKey(request *http.Request)
}

// AccessTokenAuth ставит access token в заголовок x-amz-access-token.
type AccessTokenAuth struct {
	apiKey string
}

func (a *AccessTokenAuth) GetApiKey() string {
	return a.apiKey
}

func (a *AccessTokenAuth) SetApiKey(request *http.Request) {
	request.Header.Set("x-amz-access-token", a.apiKey)
}

func NewAccessTokenAuth(token AuthToken) *AccessTokenAuth {
	if token.Value == "" {
		return nil
	}
	return &AccessTokenAuth{apiKey: token.Value}
}
