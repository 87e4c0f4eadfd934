package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics
	ReadingsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosmart_readings_generated_total",
			Help: "Total number of sensor readings generated",
		},
		[]string{"plot_id", "source"}, // source: weather, synthetic, manual
	)

	GenerationWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecosmart_generation_workers",
			Help: "Number of plots with a running generation worker",
		},
	)

	GenerationCycleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosmart_generation_cycle_errors_total",
			Help: "Total number of generation cycles that hit a recoverable error",
		},
	)

	WeatherFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosmart_weather_fallback_total",
			Help: "Total number of weather lookups that fell back to synthetic values",
		},
	)

	// Alert metrics
	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosmart_alerts_triggered_total",
			Help: "Total number of alert events recorded",
		},
		[]string{"parameter"},
	)

	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosmart_alerts_suppressed_total",
			Help: "Total number of rule matches suppressed by the cooldown window",
		},
	)

	// Notification metrics
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosmart_notifications_sent_total",
			Help: "Total number of alert notifications delivered",
		},
		[]string{"channel"}, // channel: email, mqtt
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosmart_notifications_failed_total",
			Help: "Total number of alert notifications that failed to deliver",
		},
		[]string{"channel"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosmart_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecosmart_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)
