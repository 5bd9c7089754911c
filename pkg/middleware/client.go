package middleware

import (
	"net/http"
	"time"

	"github.com/motemen/go-loghttp"

	"gomarket_mdm/pkg/logger"
)

// Logging пишет в log строку на каждый запрос и ответ. Заголовки не логируются: в них токены.
func Logging(log logger.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &loghttp.Transport{
			Transport: next,
			LogRequest: func(req *http.Request) {
				log.Log("--> %s %s", req.Method, req.URL.Redacted())
			},
			LogResponse: func(resp *http.Response) {
				log.Log("<-- %d %s %s", resp.StatusCode, resp.Request.Method, resp.Request.URL.Redacted())
			},
		}
	}
}

// NewHTTPClient собирает клиент для внешних вызовов: метрики всегда, трассировка запросов при debug.
func NewHTTPClient(timeout time.Duration, log logger.Logger, debug bool) *http.Client {
	middlewares := []Middleware{Prometheus}
	if debug && log != nil {
		middlewares = append(middlewares, Logging(log))
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Chain(http.DefaultTransport, middlewares...),
	}
}
