package middleware

import "net/http"

// Middleware оборачивает транспорт исходящих HTTP-запросов.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc позволяет использовать функцию как http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain применяет middlewares к base. Первый в списке оказывается внешним.
func Chain(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		base = middlewares[i](base)
	}
	return base
}
