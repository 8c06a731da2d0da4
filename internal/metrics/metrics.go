// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the operator's Prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Event outcomes. Resources use their apply outcome or OutcomeFailed.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeFailed  = "failed"
)

var (
	resourcesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsule_operator_resources_applied_total",
			Help: "Number of Kubernetes resources applied, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsule_operator_events_total",
			Help: "Number of lifecycle events handled, by event and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func init() {
	crmetrics.Registry.MustRegister(
		resourcesAppliedTotal,
		eventsTotal,
	)
}

// RecordResource counts an applied resource. outcome is "created", "replaced"
// or "failed".
func RecordResource(kind, outcome string) {
	resourcesAppliedTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordEvent(event, outcome string) {
	eventsTotal.WithLabelValues(event, outcome).Inc()
}

// WriteTextfile dumps the registry for the node-exporter textfile collector.
// A hook process exits long before it could be scraped.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, crmetrics.Registry)
}
