package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdm_outbound_http_requests_total",
			Help: "Total number of outbound HTTP requests.",
		},
		[]string{"method", "host", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdm_outbound_http_request_duration_seconds",
			Help:    "Histogram of outbound HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "host", "status"},
	)
	pullAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdm_pull_attempts_total",
			Help: "Remote pull attempts by result.",
		},
		[]string{"kind", "result"},
	)
	pullAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdm_pull_attempt_duration_seconds",
			Help:    "Duration of a single remote pull attempt.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"kind", "result"},
	)
	lookupResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdm_marketplace_lookup_results_total",
			Help: "Marketplace lookup results by kind and outcome (live, simulated, failed).",
		},
		[]string{"kind", "outcome"},
	)
	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdm_marketplace_token_refresh_total",
			Help: "Marketplace access token refreshes by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(pullAttemptsTotal)
	prometheus.MustRegister(pullAttemptDuration)
	prometheus.MustRegister(lookupResultsTotal)
	prometheus.MustRegister(tokenRefreshTotal)
}

// RecordRequest записывает метрики для исходящего HTTP-запроса. statusCode == 0 означает ошибку транспорта.
func RecordRequest(method, host string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, host, status).Inc()
	httpRequestDuration.WithLabelValues(method, host, status).Observe(duration.Seconds())
}

// RecordPullAttempt учитывает одну попытку выгрузки из удалённого источника.
func RecordPullAttempt(kind, result string, duration time.Duration) {
	pullAttemptsTotal.WithLabelValues(kind, result).Inc()
	pullAttemptDuration.WithLabelValues(kind, result).Observe(duration.Seconds())
}

// RecordLookup учитывает n результатов запроса к маркетплейсу с одинаковым исходом.
func RecordLookup(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	lookupResultsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

func RecordTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode == 0 {
		return "error"
	} else if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Serve поднимает /metrics на addr и останавливает сервер при отмене ctx.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
