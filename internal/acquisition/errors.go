package acquisition

import (
	"github.com/morikuni/failure/v2"
)

type ErrorCode string

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

const (
	ErrTransportFailure   ErrorCode = "TransportFailure"
	ErrConnectionFailed   ErrorCode = "ConnectionFailed"
	ErrTimeout            ErrorCode = "Timeout"
	ErrMalformedResponse  ErrorCode = "MalformedResponse"
	ErrAuthFailure        ErrorCode = "AuthFailure"
	ErrRateLimitExhausted ErrorCode = "RateLimitExhausted"
	ErrInvalidSource      ErrorCode = "InvalidSource"
	ErrUnknownSourceKind  ErrorCode = "UnknownSourceKind"
	ErrCancelled          ErrorCode = "Cancelled"
)

var knownCodes = []ErrorCode{
	ErrTransportFailure,
	ErrConnectionFailed,
	ErrTimeout,
	ErrMalformedResponse,
	ErrAuthFailure,
	ErrRateLimitExhausted,
	ErrInvalidSource,
	ErrUnknownSourceKind,
	ErrCancelled,
}

// CodeOf возвращает код ошибки выгрузки или пустую строку.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, code := range knownCodes {
		if failure.Is(err, code) {
			return code
		}
	}
	return ""
}

// Retryable: повторяются только сбои транспорта, соединения и таймауты.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrTransportFailure, ErrConnectionFailed, ErrTimeout:
		return true
	}
	return false
}

// Describe: текст для оператора: сообщение failure, если есть, иначе текст ошибки.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if msg := failure.MessageOf(err); msg != "" {
		return msg.String()
	}
	return err.Error()
}

// classify помечает ошибки без кода как сбой транспорта.
func classify(err error) error {
	if CodeOf(err) != "" {
		return err
	}
	return failure.Wrap(err, failure.WithCode(ErrTransportFailure), failure.Message(err.Error()))
}

// connectionFailed помечает сбой проверки соединения. Ошибки с другим кодом
// (авторизация, неверные настройки) остаются как есть.
func connectionFailed(err error) error {
	switch CodeOf(err) {
	case "", ErrTransportFailure:
		return failure.Wrap(err, failure.WithCode(ErrConnectionFailed),
			failure.Message("connection test failed: "+Describe(err)),
		)
	}
	return err
}
