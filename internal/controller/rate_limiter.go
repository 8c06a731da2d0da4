// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package controller

import "k8s.io/client-go/rest"

const (
	RateLimiterQPSDefault   = 30
	RateLimiterBurstDefault = 200
)

// RateLimiter throttles the requests sent to the Kubernetes API.
type RateLimiter struct {
	QPS   float32
	Burst int
}

func (r RateLimiter) Apply(cfg *rest.Config) {
	if r.QPS > 0 {
		cfg.QPS = r.QPS
	}
	if r.Burst > 0 {
		cfg.Burst = r.Burst
	}
}
