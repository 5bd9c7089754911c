package auth

import "github.com/morikuni/failure/v2"

type ErrorCode string

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

const (
	ErrAuthFailure        ErrorCode = "AuthFailure"
	ErrMissingCredentials ErrorCode = "MissingCredentials"
)

// CodeOf возвращает код ошибки авторизации или пустую строку.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case failure.Is(err, ErrMissingCredentials):
		return ErrMissingCredentials
	case failure.Is(err, ErrAuthFailure):
		return ErrAuthFailure
	}
	return ""
}
