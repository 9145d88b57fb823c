package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics counts engine operations by outcome on a private registry so tests
// can run multiple servers in one process.
type metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dappstore",
		Name:      "operations_total",
		Help:      "Curation operations processed, labelled by operation and outcome.",
	}, []string{"op", "outcome"})
	registry.MustRegister(operations)
	return &metrics{registry: registry, operations: operations}
}

func (m *metrics) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
