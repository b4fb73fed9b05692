package connection

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports pgx pool statistics for every engine a Manager
// holds. Register it with a prometheus registry:
//
//	prometheus.MustRegister(connection.NewPoolStatsCollector(manager))
type PoolStatsCollector struct {
	manager *Manager

	totalConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	acquiredConns *prometheus.Desc
	maxConns      *prometheus.Desc
	acquireCount  *prometheus.Desc
	emptyAcquires *prometheus.Desc
}

// NewPoolStatsCollector creates a collector over the manager's engines.
func NewPoolStatsCollector(manager *Manager) *PoolStatsCollector {
	labels := []string{"connection", "context"}
	return &PoolStatsCollector{
		manager: manager,
		totalConns: prometheus.NewDesc(
			"agekit_pool_total_conns",
			"Total connections currently in the pool.", labels, nil),
		idleConns: prometheus.NewDesc(
			"agekit_pool_idle_conns",
			"Idle connections currently in the pool.", labels, nil),
		acquiredConns: prometheus.NewDesc(
			"agekit_pool_acquired_conns",
			"Connections currently checked out of the pool.", labels, nil),
		maxConns: prometheus.NewDesc(
			"agekit_pool_max_conns",
			"Configured upper bound on pool connections.", labels, nil),
		acquireCount: prometheus.NewDesc(
			"agekit_pool_acquire_total",
			"Cumulative successful connection acquires.", labels, nil),
		emptyAcquires: prometheus.NewDesc(
			"agekit_pool_empty_acquire_total",
			"Cumulative acquires that had to wait for a free connection.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.emptyAcquires
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	name := c.manager.Settings().Name
	c.manager.forEachEngine(func(key Key, engine *Engine) {
		stat := engine.Stat()
		labels := []string{name, string(key)}
		ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()), labels...)
		ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()), labels...)
		ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()), labels...)
		ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()), labels...)
		ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()), labels...)
		ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(stat.EmptyAcquireCount()), labels...)
	})
}
