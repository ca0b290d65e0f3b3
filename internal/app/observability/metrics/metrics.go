package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RecommendationsTotal  metric.Int64Counter
	LocationsSavedTotal   metric.Int64Counter
	LocationsPrunedTotal  metric.Int64Counter
	ChatTurnsTotal        metric.Int64Counter
	StorageOpDurationSecs metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("perez-guide")
		m := &AppMetrics{}
		var err error

		m.RecommendationsTotal, err = meter.Int64Counter(
			"recommendations_served_total",
			metric.WithDescription("Total number of recommendation queries answered"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recommendations_served_total: %v", err)
		}

		m.LocationsSavedTotal, err = meter.Int64Counter(
			"locations_saved_total",
			metric.WithDescription("Total number of user location reports persisted"),
			metric.WithUnit("{location}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create locations_saved_total: %v", err)
		}

		m.LocationsPrunedTotal, err = meter.Int64Counter(
			"locations_pruned_total",
			metric.WithDescription("Total number of expired location rows removed"),
			metric.WithUnit("{location}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create locations_pruned_total: %v", err)
		}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of chat turns logged"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.StorageOpDurationSecs, err = meter.Float64Histogram(
			"storage_op_duration_seconds",
			metric.WithDescription("Duration of storage operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create storage_op_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance; nil until InitAppMetrics runs.
func Get() *AppMetrics {
	return appMetrics
}
