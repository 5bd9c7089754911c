package marketplace

import (
	"context"
	"errors"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/internal/marketplace/auth"
)

type ErrorCode string

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

const (
	ErrTransportFailure   ErrorCode = "TransportFailure"
	ErrRateLimitExhausted ErrorCode = "RateLimitExhausted"
	ErrMalformedResponse  ErrorCode = "MalformedResponse"
	ErrItemFailure        ErrorCode = "ItemFailure"
	ErrCancelled          ErrorCode = "Cancelled"
)

// CodeOf возвращает код ошибки, включая коды пакета auth, или пустую строку.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if code := auth.CodeOf(err); code != "" {
		return string(code)
	}
	for _, code := range []ErrorCode{
		ErrRateLimitExhausted,
		ErrMalformedResponse,
		ErrItemFailure,
		ErrCancelled,
		ErrTransportFailure,
	} {
		if failure.Is(err, code) {
			return string(code)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(ErrCancelled)
	}
	return string(ErrTransportFailure)
}

// Describe возвращает текст для пользователя.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if msg := failure.MessageOf(err); msg != "" {
		return msg.String()
	}
	return err.Error()
}
