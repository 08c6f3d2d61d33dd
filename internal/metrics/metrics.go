// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplink",
		Name:      "invocations_total",
		Help:      "Action invocations by integration, action and error code (empty code = success).",
	}, []string{"integration", "action", "code"})

	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "uplink",
		Name:      "invocation_duration_seconds",
		Help:      "End-to-end invocation latency including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"integration", "action"})

	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplink",
		Name:      "routing_decisions_total",
		Help:      "Composite tool routing outcomes by tool, mode and result.",
	}, []string{"tool", "mode", "result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplink",
		Name:      "http_requests_total",
		Help:      "API requests by route and status class.",
	}, []string{"route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "uplink",
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// ObserveInvocation records one gateway invocation.
func ObserveInvocation(integration, action, code string, d time.Duration) {
	invocationsTotal.WithLabelValues(integration, action, code).Inc()
	invocationDuration.WithLabelValues(integration, action).Observe(d.Seconds())
}

// ObserveRouting records one composite routing decision. result is the
// routing error code, or "matched"/"default" for successes.
func ObserveRouting(tool, mode, result string) {
	routingDecisions.WithLabelValues(tool, mode, result).Inc()
}

// ObserveHTTP records one API request.
func ObserveHTTP(route, status string, d time.Duration) {
	httpRequests.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
