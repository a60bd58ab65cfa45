package metrics

import (
	"time"

	"file-server/internal/logging"
)

// StatsProvider reports index sizes for the periodic gauges.
type StatsProvider interface {
	GetStats() Stats
}

// DBMetricsUpdater refreshes connection and file-size gauges.
type DBMetricsUpdater interface {
	UpdateDBMetrics()
}

// Stats holds the current index sizes
type Stats struct {
	Records  int64
	Postings int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbUpdater     DBMetricsUpdater
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. Either argument may be nil.
func NewCollector(provider StatsProvider, dbUpdater DBMetricsUpdater, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbUpdater:     dbUpdater,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.dbUpdater != nil {
		c.dbUpdater.UpdateDBMetrics()
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	IndexerRecordsTotal.Set(float64(stats.Records))
	IndexerPostingsTotal.Set(float64(stats.Postings))

	logging.Debug("Metrics collected: records=%d, postings=%d", stats.Records, stats.Postings)
}
