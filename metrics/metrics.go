// Package metrics exports the counters of a reactive runtime to Prometheus.
package metrics

import (
	"github.com/delaneyj/reactor/reactive"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything that can snapshot reactive runtime counters.
// *reactive.Runtime satisfies it.
type StatsSource interface {
	Stats() reactive.Stats
}

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics, for example to tell
// several runtimes in one process apart.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

type counter struct {
	desc  *prometheus.Desc
	value func(reactive.Stats) uint64
}

// Collector is a prometheus.Collector reading a StatsSource on every scrape.
// Since Stats is safe to call from any goroutine, scrapes never touch the
// goroutine that owns the runtime.
type Collector struct {
	source   StatsSource
	counters []counter
}

// NewCollector creates a collector over src.
func NewCollector(src StatsSource, opts ...Option) *Collector {
	cfg := Config{Namespace: "reactor"}
	for _, opt := range opts {
		opt(&cfg)
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(cfg.Namespace, cfg.Subsystem, name),
			help, nil, cfg.ConstLabels,
		)
	}
	return &Collector{
		source: src,
		counters: []counter{
			{desc("ticks_total", "Microtask batches armed."), func(s reactive.Stats) uint64 { return s.Ticks }},
			{desc("flushes_total", "Scheduler flushes run."), func(s reactive.Stats) uint64 { return s.Flushes }},
			{desc("watcher_runs_total", "Watcher re-evaluations."), func(s reactive.Stats) uint64 { return s.WatcherRuns }},
			{desc("runaway_drops_total", "Watchers dropped from a flush for re-queueing too often."), func(s reactive.Stats) uint64 { return s.RunawayDrops }},
			{desc("errors_total", "Errors raised by user code and reported."), func(s reactive.Stats) uint64 { return s.ErrorsReported }},
			{desc("warnings_total", "Development warnings emitted."), func(s reactive.Stats) uint64 { return s.Warnings }},
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(s)))
	}
}

// Register creates a collector over src and registers it with reg.
func Register(reg prometheus.Registerer, src StatsSource, opts ...Option) (*Collector, error) {
	c := NewCollector(src, opts...)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
