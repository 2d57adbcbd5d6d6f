/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the batch collectors.
type Metrics struct {
	repositories *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	detected     *prometheus.CounterVec
}

// NewMetrics registers the batch collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		repositories: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockfiles_repositories_total",
				Help: "Repositories processed, by final status",
			},
			[]string{"status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lockfiles_repository_duration_seconds",
				Help:    "Wall time spent on one repository",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
		detected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockfiles_detected_total",
				Help: "Lock files detected at repository roots",
			},
			[]string{"lockfile"},
		),
	}
}

func (m *Metrics) observe(r Report) {
	if m == nil {
		return
	}
	status := r.Status()
	m.repositories.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(r.Duration.Seconds())
	for _, name := range r.Lockfiles {
		m.detected.WithLabelValues(name).Inc()
	}
}
