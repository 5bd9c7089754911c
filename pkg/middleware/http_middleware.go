package middleware

import (
	"net/http"
	"time"

	"gomarket_mdm/metrics"
)

// Prometheus записывает метрики каждого исходящего запроса: метод, хост, статус и длительность.
func Prometheus(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()

		resp, err := next.RoundTrip(req)

		status := 0
		if err == nil && resp != nil {
			status = resp.StatusCode
		}
		metrics.RecordRequest(req.Method, req.URL.Host, status, time.Since(start))
		return resp, err
	})
}
