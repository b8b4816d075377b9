package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports connection pool statistics to Prometheus.
type Collector struct {
	stat func() *pgxpool.Stat

	acquired      *prometheus.Desc
	idle          *prometheus.Desc
	total         *prometheus.Desc
	maxConns      *prometheus.Desc
	acquires      *prometheus.Desc
	emptyAcquires *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading p's statistics on every scrape.
func NewCollector(p *Pool) *Collector {
	return &Collector{
		stat:          p.Stat,
		acquired:      prometheus.NewDesc("bingo_db_acquired_conns", "Connections currently in use.", nil, nil),
		idle:          prometheus.NewDesc("bingo_db_idle_conns", "Idle connections in the pool.", nil, nil),
		total:         prometheus.NewDesc("bingo_db_total_conns", "Open connections in the pool.", nil, nil),
		maxConns:      prometheus.NewDesc("bingo_db_max_conns", "Maximum size of the pool.", nil, nil),
		acquires:      prometheus.NewDesc("bingo_db_acquires_total", "Successful connection acquisitions.", nil, nil),
		emptyAcquires: prometheus.NewDesc("bingo_db_empty_acquires_total", "Acquisitions that had to wait for a connection.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.emptyAcquires
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
