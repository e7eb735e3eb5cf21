package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commands           *prometheus.CounterVec
	commandsDropped    prometheus.Counter
	snapshotsPublished prometheus.Counter
	snapshotsReclaimed prometheus.Counter
	cpuLoad            prometheus.Gauge
	activeVoices       prometheus.Gauge
	droppedEvents      prometheus.Counter

	lastDropped uint64
}

func newMetrics(reg prometheus.Registerer, session string) *metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"session": session}
	return &metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "synth_commands_total",
			Help:        "Commands delivered to the engine by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		commandsDropped: f.NewCounter(prometheus.CounterOpts{
			Name:        "synth_commands_dropped_total",
			Help:        "Commands dropped because the engine queue was full",
			ConstLabels: labels,
		}),
		snapshotsPublished: f.NewCounter(prometheus.CounterOpts{
			Name:        "synth_snapshots_published_total",
			Help:        "Snapshots handed to the engine",
			ConstLabels: labels,
		}),
		snapshotsReclaimed: f.NewCounter(prometheus.CounterOpts{
			Name:        "synth_snapshots_reclaimed_total",
			Help:        "Snapshots returned by the engine and released",
			ConstLabels: labels,
		}),
		cpuLoad: f.NewGauge(prometheus.GaugeOpts{
			Name:        "synth_engine_cpu_load",
			Help:        "Smoothed ratio of render time to block duration",
			ConstLabels: labels,
		}),
		activeVoices: f.NewGauge(prometheus.GaugeOpts{
			Name:        "synth_engine_active_voices",
			Help:        "Voices sounding at the last readback",
			ConstLabels: labels,
		}),
		droppedEvents: f.NewCounter(prometheus.CounterOpts{
			Name:        "synth_engine_dropped_events_total",
			Help:        "Clip events the engine could not schedule",
			ConstLabels: labels,
		}),
	}
}

// observe copies readback values into the gauges. Control thread only.
func (m *metrics) observe(cpu float64, voices int, dropped uint64) {
	m.cpuLoad.Set(cpu)
	m.activeVoices.Set(float64(voices))
	if dropped > m.lastDropped {
		m.droppedEvents.Add(float64(dropped - m.lastDropped))
		m.lastDropped = dropped
	}
}
