// Package metrics exposes the withdrawal engine's Prometheus metrics.
package metrics

import (
	"database/sql"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const namespace = "withdrawer"

// Service implements withdraw.Recorder on top of its own registry so that
// tests and multiple servers in one process never collide.
type Service struct {
	Registry *prometheus.Registry

	queueDepth   prometheus.Gauge
	decisions    *prometheus.CounterVec
	transfers    *prometheus.CounterVec
	skippedTicks prometheus.Counter
	tickDuration prometheus.Histogram
}

var _ withdraw.Recorder = (*Service)(nil)

// New registers the engine metrics. db may be nil when the queue is not SQL-backed.
func New(cfg config.Server, db *sql.DB) (*Service, error) {
	reg := prometheus.NewRegistry()

	s := &Service{
		Registry: reg,
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Pending withdrawal requests observed at the start of the last tick",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Engine tick outcomes by decision",
		}, []string{"decision"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transfers_total",
			Help:      "Transfers by lifecycle event",
		}, []string{"event"}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because the previous tick was still running",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Engine tick processing duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	// pre-create every decision series so dashboards see zeros
	for _, d := range withdraw.Decisions {
		s.decisions.WithLabelValues(string(d))
	}

	toRegister := []prometheus.Collector{
		s.queueDepth,
		s.decisions,
		s.transfers,
		s.skippedTicks,
		s.tickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}

	if db != nil {
		toRegister = append(toRegister, sqlstats.NewStatsCollector(databaseLabel(cfg.Database), db))
	}

	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func databaseLabel(cfg config.Database) string {
	if cfg.Driver == config.DriverSQLite {
		return "sqlite"
	}

	return cfg.Database
}

func (s *Service) QueueDepth(depth int) {
	s.queueDepth.Set(float64(depth))
}

func (s *Service) Decision(decision withdraw.Decision) {
	s.decisions.WithLabelValues(string(decision)).Inc()

	switch decision {
	case withdraw.DecisionSubmitted, withdraw.DecisionConfirmed, withdraw.DecisionBounced:
		s.transfers.WithLabelValues(string(decision)).Inc()
	default:
	}
}

func (s *Service) TickSkipped() {
	s.skippedTicks.Inc()
}

func (s *Service) TickDuration(d time.Duration) {
	s.tickDuration.Observe(d.Seconds())
}
