// Package metrics exposes game engine counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Observer interface {
	Observe(val float64, labels ...string)

	// tightly coupled to the prometheus collector type so Register can take it
	prometheus.Collector
}

type Metrics struct {
	SessionsStarted Observer
	ActiveSessions  Observer
	TurnsCount      Observer // labels: outcome (called, skipped, auto)
	GamesFinished   Observer // labels: outcome (completed, abandoned)
	ReplyLatency    Observer
}

// New creates unregistered collectors. Call Register to expose them.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: NewPromCounter(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bingo",
			Name:      "sessions_started_total",
			Help:      "Number of bingo sessions started.",
		})),
		ActiveSessions: NewPromGauge(prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bingo",
			Name:      "sessions_active",
			Help:      "Number of bingo sessions currently running.",
		})),
		TurnsCount: NewPromCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo",
			Name:      "turns_total",
			Help:      "Number of turns played by outcome.",
		}, []string{"outcome"})),
		GamesFinished: NewPromCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo",
			Name:      "games_finished_total",
			Help:      "Number of finished bingo sessions by outcome.",
		}, []string{"outcome"})),
		ReplyLatency: NewPromHistogram(prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bingo",
			Name:      "reply_latency_seconds",
			Help:      "Time players take to call a number.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60},
		})),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionsStarted,
		m.ActiveSessions,
		m.TurnsCount,
		m.GamesFinished,
		m.ReplyLatency,
	}
}

// Register registers every collector, ignoring ones already registered.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
