package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdul-hamid-achik/courier/packages/future"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Metrics holds the Prometheus collectors for outgoing requests.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_requests_total",
				Help: "Total number of requests by method and response status",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_request_errors_total",
				Help: "Total number of failed requests by error kind and code",
			},
			[]string{"kind", "code"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courier_requests_in_flight",
			Help: "Number of requests currently being exchanged",
		}),
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.errorsTotal, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Wrap returns an adapter that records every exchange made through next.
func (m *Metrics) Wrap(next courier.Adapter) courier.Adapter {
	return func(cfg *courier.Config) *courier.Future {
		m.inFlight.Inc()
		start := time.Now()

		p := next(cfg)
		if p == nil {
			m.inFlight.Dec()
			return nil
		}
		return future.Then(p, func(resp *courier.Response) (*courier.Response, error) {
			m.observe(cfg.Method, strconv.Itoa(resp.Status), start)
			return resp, nil
		}, func(err error) (*courier.Response, error) {
			status := "error"
			kind, code := "transport", ""
			if e, ok := courier.AsError(err); ok {
				kind, code = e.Kind.String(), e.Code
				if e.Response != nil {
					status = strconv.Itoa(e.Response.Status)
				}
			}
			m.errorsTotal.WithLabelValues(kind, code).Inc()
			m.observe(cfg.Method, status, start)
			return nil, err
		})
	}
}

func (m *Metrics) observe(method, status string, start time.Time) {
	m.inFlight.Dec()
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// Install wraps the client's default adapter.
func (m *Metrics) Install(c *courier.Client) {
	c.Defaults.Adapter = m.Wrap(adapterOf(c))
}

func adapterOf(c *courier.Client) courier.Adapter {
	if c.Defaults.Adapter != nil {
		return c.Defaults.Adapter
	}
	return courier.DefaultAdapter()
}
