package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// Auth operations (login/register/logout/resolve)
	AuthOpDuration *prometheus.HistogramVec
	AuthOpResults  *prometheus.CounterVec

	// Profile store
	StoreOpDuration *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scholarhub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scholarhub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scholarhub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		AuthOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scholarhub",
				Subsystem: "auth",
				Name:      "operation_duration_seconds",
				Help:      "Auth operation latency by operation and result.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"op", "result"}, // result=ok|error
		),
		AuthOpResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scholarhub",
				Subsystem: "auth",
				Name:      "operation_results_total",
				Help:      "Auth operation outcomes by operation and error kind.",
			},
			[]string{"op", "result"}, // result=ok or the error kind
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scholarhub",
				Subsystem: "profile",
				Name:      "store_op_duration_seconds",
				Help:      "Profile store operation latency (logical op, not raw SQL).",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scholarhub",
				Subsystem: "profile",
				Name:      "store_errors_total",
				Help:      "Profile store errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.AuthOpDuration, p.AuthOpResults,
		p.StoreOpDuration, p.StoreErrors,
	)

	return p
}

// ObserveAuthOp records one auth operation. The result label is "ok" or the
// structured error kind so dashboards can split failures by cause.
func (p *Prom) ObserveAuthOp(op, result string, start time.Time) {
	status := "ok"
	if result != "ok" {
		status = "error"
	}

	p.AuthOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	p.AuthOpResults.WithLabelValues(op, result).Inc()
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
