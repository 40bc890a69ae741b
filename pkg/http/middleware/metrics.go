package middleware

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reqTotal    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	reqInFlight *prometheus.GaugeVec
	respBytes   *prometheus.HistogramVec
	metricsOnce sync.Once
)

func registerHTTPMetrics() {
	metricsOnce.Do(func() {
		reqTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "svu_http_requests_total", Help: "HTTP requests handled"},
			[]string{"route", "method", "status"},
		)
		reqDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svu_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		)
		reqInFlight = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "svu_http_in_flight_requests", Help: "In-flight HTTP requests"},
			[]string{"route"},
		)
		respBytes = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svu_http_response_size_bytes",
				Help:    "HTTP response sizes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"route"},
		)
	})
}

// Metrics records per-route request metrics. The route label uses Echo's
// route template, which keeps cardinality bounded for parameterized paths.
func Metrics() echo.MiddlewareFunc {
	registerHTTPMetrics()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			reqInFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			reqInFlight.WithLabelValues(route).Dec()

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			reqTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			reqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			respBytes.WithLabelValues(route).Observe(float64(c.Response().Size))
			return err
		}
	}
}
