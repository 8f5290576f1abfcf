/*
MIT License

Copyright (c) 2025 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package metrics collects the hot-path counters every transport shares:
// memory-pool hit rate, active sessions, backpressure events, and reconnect
// attempts.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the collectors a channel reports to. Build one with New
// and register it on a prometheus.Registerer, or use NewRegistered to do
// both in one call.
type Registry struct {
	PoolGets        *prometheus.CounterVec
	PoolHits        *prometheus.CounterVec
	ActiveSessions  *prometheus.GaugeVec
	Backpressure    *prometheus.CounterVec
	ReconnectAttempt *prometheus.CounterVec
	ReconnectGiveUp *prometheus.CounterVec
}

const namespace = "unilink"

// New builds an unregistered Registry.
func New() *Registry {
	return &Registry{
		PoolGets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "gets_total",
			Help:      "Buffer acquisitions requested from the bucketed memory pool, by bucket size class.",
		}, []string{"bucket"}),
		PoolHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "hits_total",
			Help:      "Buffer acquisitions served from a pooled buffer rather than a fresh allocation, by bucket size class.",
		}, []string{"bucket"}),
		ActiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Currently open channel sessions, by transport kind.",
		}, []string{"transport"}),
		Backpressure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "backpressure_events_total",
			Help:      "Backpressure activate/deactivate edge crossings, by transport kind and direction.",
		}, []string{"transport", "direction"}),
		ReconnectAttempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "attempts_total",
			Help:      "Reconnect attempts made by a TCP client channel.",
		}, []string{"transport"}),
		ReconnectGiveUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "give_up_total",
			Help:      "Reconnect budgets exhausted without a successful connection.",
		}, []string{"transport"}),
	}
}

// collectors lists every collector in the registry, for bulk (un)registration.
func (r *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.PoolGets, r.PoolHits, r.ActiveSessions, r.Backpressure, r.ReconnectAttempt, r.ReconnectGiveUp,
	}
}

// MustRegister registers every collector on reg, panicking on a duplicate
// registration (mirrors prometheus.MustRegister's contract).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	for _, c := range r.collectors() {
		reg.MustRegister(c)
	}
}

// NewRegistered builds a Registry and registers it on reg in one call.
func NewRegistered(reg prometheus.Registerer) *Registry {
	r := New()
	r.MustRegister(reg)
	return r
}

// PoolHitRate reports the fraction of acquisitions served from the pool for
// the given bucket label, or 0 if no acquisitions have been observed yet.
func (r *Registry) PoolHitRate(bucket string) float64 {
	gets := counterValue(r.PoolGets, bucket)
	if gets == 0 {
		return 0
	}
	return counterValue(r.PoolHits, bucket) / gets
}

func counterValue(vec *prometheus.CounterVec, label string) float64 {
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
