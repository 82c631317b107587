// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package collector

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	counters               *prometheus.CounterVec
	mapEntries             prometheus.Gauge
	mapReadDurationSeconds prometheus.Gauge
	mapReadErrorsTotal     prometheus.Counter
	prunedEntriesTotal     prometheus.Counter
	configMapMaxEntries    prometheus.Gauge
	configPollInterval     prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		counters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hook_counters_total",
				Help: "Dataplane counters summed over all CPUs, by interface, ifindex, hook and counter.",
			},
			[]string{"interface", "ifindex", "hook", "counter"},
		),
		mapEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hook_counters_map_entries",
				Help: "Number of interface/hook entries in the counters map at the last poll.",
			},
		),
		mapReadDurationSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hook_counters_map_read_duration_seconds",
				Help: "Time in seconds to read the counters map in the last poll.",
			},
		),
		mapReadErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hook_counters_map_read_errors_total",
				Help: "Failed reads of the counters map.",
			},
		),
		prunedEntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hook_counters_pruned_entries_total",
				Help: "Entries deleted from the counters map because their interface no longer exists.",
			},
		),
		configMapMaxEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hook_counters_config_map_max_entries",
				Help: "Maximum entries of the counters map.",
			},
		),
		configPollInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hook_counters_config_poll_interval_seconds",
				Help: "Configured poll interval in seconds.",
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.counters,
		m.mapEntries,
		m.mapReadDurationSeconds,
		m.mapReadErrorsTotal,
		m.prunedEntriesTotal,
		m.configMapMaxEntries,
		m.configPollInterval,
	)
	slog.Info("Prometheus metrics registered")
}
