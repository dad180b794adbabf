package monitor

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Metrics represents all the application metrics
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionsSuccess *prometheus.CounterVec
	ResolutionsFailed  *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec

	// Provider metrics
	ProviderAttempts *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Rate limiting
	RateLimitRejections prometheus.Counter

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge

	// Active resolutions
	ActiveResolutions prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_resolver_resolutions_total",
				Help: "Total number of resolution attempts",
			},
			[]string{"platform", "format"},
		),

		ResolutionsSuccess: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_resolver_resolutions_success_total",
				Help: "Total number of successful resolutions",
			},
			[]string{"platform", "format"},
		),

		ResolutionsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_resolver_resolutions_failed_total",
				Help: "Total number of failed resolutions",
			},
			[]string{"platform", "format", "failure_class"},
		),

		ResolutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "media_resolver_resolution_duration_seconds",
				Help:    "Time spent resolving media URLs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform", "format"},
		),

		ProviderAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_resolver_provider_attempts_total",
				Help: "Total attempts against extraction providers",
			},
			[]string{"provider"},
		),

		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_resolver_provider_errors_total",
				Help: "Total errors from extraction providers",
			},
			[]string{"provider", "failure_class"},
		),

		ProviderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "media_resolver_provider_duration_seconds",
				Help:    "Time spent on individual provider attempts",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		RateLimitRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "media_resolver_rate_limit_rejections_total",
				Help: "Total resolutions rejected by the admission gate",
			},
		),

		Goroutines: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "media_resolver_goroutines",
			Help: "Number of goroutines",
		}),

		MemoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "media_resolver_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),

		ActiveResolutions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "media_resolver_active_resolutions",
			Help: "Number of in-flight resolutions",
		}),
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:  NewMetrics(),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the monitoring system
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.metrics.MemoryUsage.Set(float64(memStats.Alloc))

		case <-m.stopChan:
			return
		}
	}
}

// RecordResolutionStart records the start of a resolution
func (m *Monitor) RecordResolutionStart(platform, format string) {
	m.metrics.ResolutionsTotal.WithLabelValues(platform, format).Inc()
	m.metrics.ActiveResolutions.Inc()
}

// RecordResolutionSuccess records a successful resolution
func (m *Monitor) RecordResolutionSuccess(platform, format string, duration time.Duration) {
	m.metrics.ResolutionsSuccess.WithLabelValues(platform, format).Inc()
	m.metrics.ResolutionDuration.WithLabelValues(platform, format).Observe(duration.Seconds())
	m.metrics.ActiveResolutions.Dec()
}

// RecordResolutionFailure records a failed resolution
func (m *Monitor) RecordResolutionFailure(platform, format, failureClass string, duration time.Duration) {
	m.metrics.ResolutionsFailed.WithLabelValues(platform, format, failureClass).Inc()
	m.metrics.ResolutionDuration.WithLabelValues(platform, format).Observe(duration.Seconds())
	m.metrics.ActiveResolutions.Dec()
}

// RecordProviderAttempt records one attempt against a provider
func (m *Monitor) RecordProviderAttempt(provider string, duration time.Duration) {
	m.metrics.ProviderAttempts.WithLabelValues(provider).Inc()
	m.metrics.ProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderError records a classified provider failure
func (m *Monitor) RecordProviderError(provider, failureClass string) {
	m.metrics.ProviderErrors.WithLabelValues(provider, failureClass).Inc()
}

// RecordRateLimitRejection records an admission gate rejection
func (m *Monitor) RecordRateLimitRejection() {
	m.metrics.RateLimitRejections.Inc()
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// HealthCheck performs a health check
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}
