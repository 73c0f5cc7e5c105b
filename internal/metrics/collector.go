// Package metrics exports filesystem operation counters over Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	Namespace      string        `yaml:"namespace"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// DefaultConfig returns the stock metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Port:           9090,
		Path:           "/metrics",
		Namespace:      "spoolfs",
		UpdateInterval: 30 * time.Second,
	}
}

// Collector gathers per-operation metrics and serves them over HTTP. A
// disabled collector is a valid no-op recorder.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	readBytes         prometheus.Counter
	writtenBytes      prometheus.Counter
	promotionCounter  prometheus.Counter
	entryGauge        prometheus.Gauge

	// entrySource reports the current namespace size for the gauge.
	entrySource func() int

	server *http.Server
}

// NewCollector creates a collector from config. A nil config means defaults.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	c := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() {
	ns := c.config.Namespace

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_total",
			Help:      "Total filesystem operations by type and status",
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "operation_duration_seconds",
			Help:      "Operation latency distribution",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to ~1.6s
		},
		[]string{"operation"},
	)

	c.readBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "read_bytes_total",
		Help:      "Total bytes served to read requests",
	})

	c.writtenBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "written_bytes_total",
		Help:      "Total bytes accepted from write requests",
	})

	c.promotionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "promotions_total",
		Help:      "Total memory-to-disk spool promotions",
	})

	c.entryGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "entries",
		Help:      "Current number of namespace entries",
	})
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.readBytes,
		c.writtenBytes,
		c.promotionCounter,
		c.entryGauge,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// SetEntrySource wires a callback that reports the namespace size. It is
// polled on the update interval while the collector runs.
func (c *Collector) SetEntrySource(fn func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entrySource = fn
}

// Start serves the metrics and health endpoints until Stop is called.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	go c.updateLoop(ctx)

	return nil
}

// Stop shuts down the metrics server.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one protocol operation outcome.
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
	}).Inc()

	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())
}

// RecordRead accounts bytes returned to a read request.
func (c *Collector) RecordRead(bytes int64) {
	if !c.config.Enabled {
		return
	}
	c.readBytes.Add(float64(bytes))
}

// RecordWrite accounts bytes accepted by a write request.
func (c *Collector) RecordWrite(bytes int64) {
	if !c.config.Enabled {
		return
	}
	c.writtenBytes.Add(float64(bytes))
}

// RecordPromotion counts one spool promotion.
func (c *Collector) RecordPromotion() {
	if !c.config.Enabled {
		return
	}
	c.promotionCounter.Inc()
}

func (c *Collector) updateLoop(ctx context.Context) {
	interval := c.config.UpdateInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			source := c.entrySource
			c.mu.RUnlock()
			if source != nil {
				c.entryGauge.Set(float64(source()))
			}
		}
	}
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
