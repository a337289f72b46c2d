// Package metrics exposes Prometheus instrumentation for the server and the
// analysis engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	compositeScore   prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New builds a Metrics with its own registry. When withRuntime is set the Go
// runtime and process collectors are registered as well.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optm_analyses_total",
				Help: "Total number of progress analyses by overall category",
			},
			[]string{"category"},
		),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optm_analysis_duration_seconds",
			Help:    "Duration of progress analyses in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		compositeScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optm_composite_score",
			Help:    "Distribution of composite improvement scores",
			Buckets: []float64{-50, -25, 0, 25, 50, 75, 100},
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optm_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		m.analysesTotal,
		m.analysisDuration,
		m.compositeScore,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// ObserveAnalysis records one completed analysis.
func (m *Metrics) ObserveAnalysis(category string, score float64, d time.Duration) {
	m.analysesTotal.WithLabelValues(category).Inc()
	m.analysisDuration.Observe(d.Seconds())
	m.compositeScore.Observe(score)
}

// Middleware records request counts and latencies keyed by the matched route
// pattern, not the raw path.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
