package compiler

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type compileMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newCompileMetrics 同名指标已注册时复用已有的 collector，同一进程可以创建多个同名 Compiler
func newCompileMetrics(name string, registerer prometheus.Registerer) (*compileMetrics, error) {
	total, err := register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_compile_total",
			Help: "Total number of compile operations",
		},
		[]string{"operation", "status"},
	))
	if err != nil {
		return nil, err
	}

	duration, err := register(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_compile_duration_seconds",
			Help:    "Duration of compile operations in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"operation"},
	))
	if err != nil {
		return nil, err
	}

	return &compileMetrics{total: total, duration: duration}, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, errors.Wrap(err, "prometheus.Register failed")
}

func (m *compileMetrics) observe(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.total.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(seconds)
}
