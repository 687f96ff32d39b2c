package batchsync

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure stages recorded by Metrics.
const (
	StageFetch     = "fetch"
	StageValidate  = "validate"
	StageReconcile = "reconcile"
)

// Metrics counts sync outcomes.
type Metrics struct {
	Dispositions *prometheus.CounterVec
	Failures     *prometheus.CounterVec
}

// NewMetrics creates the sync counters and registers them on reg. A nil reg
// leaves them unregistered. Counters already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "algebrix",
			Subsystem: "sync",
			Name:      "dispositions_total",
			Help:      "Reconciled candidate batches by disposition.",
		}, []string{"disposition"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "algebrix",
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Failed sync attempts by stage.",
		}, []string{"stage"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Dispositions, err = register(reg, m.Dispositions); err != nil {
		return nil, err
	}
	if m.Failures, err = register(reg, m.Failures); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register sync metrics: %w", err)
	}
	return c, nil
}

func (m *Metrics) observeDisposition(d Disposition) {
	if m != nil {
		m.Dispositions.WithLabelValues(string(d)).Inc()
	}
}

func (m *Metrics) observeFailure(stage string) {
	if m != nil {
		m.Failures.WithLabelValues(stage).Inc()
	}
}
