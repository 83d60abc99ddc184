package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Callback outcomes recorded in wxmsg_callbacks_total.
const (
	outcomeOK           = "ok"
	outcomeDuplicate    = "duplicate"
	outcomeBadSignature = "bad_signature"
	outcomeBadRequest   = "bad_request"
	outcomeError        = "error"
)

type metrics struct {
	callbacks *prometheus.CounterVec
	bytes     *prometheus.SummaryVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &metrics{
		callbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wxmsg",
				Name:      "callbacks_total",
				Help:      "Callbacks received, by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		bytes: f.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  "wxmsg",
				Name:       "callback_body_bytes",
				Help:       "Size of callback request bodies.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"endpoint"},
		),
	}
}

func (m *metrics) observe(endpoint, outcome string) {
	m.callbacks.WithLabelValues(endpoint, outcome).Inc()
}
