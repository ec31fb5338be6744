// Package metrics exposes fleet-level counters for simulation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	TicksTotal       prometheus.Counter
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	DecodeFailures   *prometheus.CounterVec
	ConvergedAgents  prometheus.Gauge
	AssignedTasks    prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	return &Collector{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Fleet ticks executed",
		}),
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Consensus snapshots broadcast per agent",
		}, []string{"agent"}),
		MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Consensus snapshots drained per agent",
		}, []string{"agent"}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Inbound blobs dropped as malformed per agent",
		}, []string{"agent"}),
		ConvergedAgents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "converged_agents",
			Help:      "Agents whose winners table is at a local fixed point",
		}),
		AssignedTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assigned_tasks",
			Help:      "Tasks with a non-empty winner across the fleet view",
		}),
	}
}
