// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the per-sensor counters of the notification pipeline.
type Metrics struct {
	Notifications *prometheus.CounterVec
	Malformed     *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	Forwarded     *prometheus.CounterVec
	SinkErrors    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dotbridge",
			Name:      name,
			Help:      help,
		}, []string{"sensor"})
	}
	m := &Metrics{
		Notifications: counter("notifications_total", "BLE notifications received."),
		Malformed:     counter("malformed_payloads_total", "Notifications whose length did not match the payload variant."),
		Dropped:       counter("dropped_notifications_total", "Notifications dropped because the buffer was full."),
		Forwarded:     counter("forwarded_readings_total", "Decoded readings handed to the sinks."),
		SinkErrors:    counter("sink_errors_total", "Sink calls that returned an error."),
	}
	reg.MustRegister(m.Notifications, m.Malformed, m.Dropped, m.Forwarded, m.SinkErrors)
	return m
}
