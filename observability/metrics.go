package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

var meter metric.Meter

// Metrics holds every metric the frontier service exports.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestSize     metric.Int64Histogram
	HTTPResponseSize    metric.Int64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Frontier domain metrics
	FrontierQueueSize       metric.Int64Gauge
	FrontierInProgress      metric.Int64Gauge
	FrontierScheduledTotal  metric.Int64Counter
	FrontierRejectedTotal   metric.Int64Counter
	FrontierDispatchedTotal metric.Int64Counter
	FrontierProcessedTotal  metric.Int64Counter
	FrontierAbandonedTotal  metric.Int64Counter
	FrontierSeedsRemoved    metric.Int64Counter
	FrontierStorageErrors   metric.Int64Counter
	FrontierDispatchLatency metric.Float64Histogram

	// Kafka metrics
	KafkaMessagesProduced metric.Int64Counter
	KafkaProducerErrors   metric.Int64Counter
	KafkaMessagesConsumed metric.Int64Counter
	KafkaConsumerErrors   metric.Int64Counter
	KafkaConsumerLag      metric.Int64Gauge

	// System metrics
	GoroutinesActive metric.Int64Gauge
	MemoryAllocated  metric.Int64Gauge
	MemoryHeap       metric.Int64Gauge
}

// InitMetrics initializes OpenTelemetry metrics with a Prometheus exporter
// and returns a mux serving /metrics, grounded on the teacher's
// observability/metrics.go wiring, trimmed from the SaaS metric set to the
// frontier's own gauges/counters.
func InitMetrics(serviceName, serviceVersion string) (*Metrics, *http.ServeMux, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	meter = provider.Meter(serviceName)

	m := &Metrics{}
	var errs []error
	must := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"), metric.WithUnit("1"))
	must("http_requests_total", err)

	m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s"))
	must("http_request_duration_seconds", err)

	m.HTTPRequestSize, err = meter.Int64Histogram("http_request_size_bytes",
		metric.WithDescription("HTTP request size in bytes"), metric.WithUnit("By"))
	must("http_request_size_bytes", err)

	m.HTTPResponseSize, err = meter.Int64Histogram("http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"), metric.WithUnit("By"))
	must("http_response_size_bytes", err)

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_requests_active",
		metric.WithDescription("Number of active HTTP requests"), metric.WithUnit("1"))
	must("http_requests_active", err)

	m.FrontierQueueSize, err = meter.Int64Gauge("frontier_queue_size",
		metric.WithDescription("Total URLs currently held across every per-host queue"), metric.WithUnit("1"))
	must("frontier_queue_size", err)

	m.FrontierInProgress, err = meter.Int64Gauge("frontier_in_progress",
		metric.WithDescription("Number of claims currently outstanding"), metric.WithUnit("1"))
	must("frontier_in_progress", err)

	m.FrontierScheduledTotal, err = meter.Int64Counter("frontier_scheduled_total",
		metric.WithDescription("Total URLs successfully scheduled"), metric.WithUnit("1"))
	must("frontier_scheduled_total", err)

	m.FrontierRejectedTotal, err = meter.Int64Counter("frontier_rejected_total",
		metric.WithDescription("Total URLs rejected as duplicate keys"), metric.WithUnit("1"))
	must("frontier_rejected_total", err)

	m.FrontierDispatchedTotal, err = meter.Int64Counter("frontier_dispatched_total",
		metric.WithDescription("Total URLs dispatched to workers"), metric.WithUnit("1"))
	must("frontier_dispatched_total", err)

	m.FrontierProcessedTotal, err = meter.Int64Counter("frontier_processed_total",
		metric.WithDescription("Total URLs marked processed"), metric.WithUnit("1"))
	must("frontier_processed_total", err)

	m.FrontierAbandonedTotal, err = meter.Int64Counter("frontier_abandoned_total",
		metric.WithDescription("Total claims abandoned by workers"), metric.WithUnit("1"))
	must("frontier_abandoned_total", err)

	m.FrontierSeedsRemoved, err = meter.Int64Counter("frontier_seeds_removed_total",
		metric.WithDescription("Total seeds whose offspring were bulk-removed"), metric.WithUnit("1"))
	must("frontier_seeds_removed_total", err)

	m.FrontierStorageErrors, err = meter.Int64Counter("frontier_storage_errors_total",
		metric.WithDescription("Total storage errors returned by the frontier"), metric.WithUnit("1"))
	must("frontier_storage_errors_total", err)

	m.FrontierDispatchLatency, err = meter.Float64Histogram("frontier_dispatch_wait_seconds",
		metric.WithDescription("Time a GetNextURL call spent waiting before dispatch"), metric.WithUnit("s"))
	must("frontier_dispatch_wait_seconds", err)

	m.KafkaMessagesProduced, err = meter.Int64Counter("kafka_messages_produced_total",
		metric.WithDescription("Total number of Kafka messages produced"), metric.WithUnit("1"))
	must("kafka_messages_produced_total", err)

	m.KafkaProducerErrors, err = meter.Int64Counter("kafka_producer_errors_total",
		metric.WithDescription("Total number of Kafka producer errors"), metric.WithUnit("1"))
	must("kafka_producer_errors_total", err)

	m.KafkaMessagesConsumed, err = meter.Int64Counter("kafka_messages_consumed_total",
		metric.WithDescription("Total number of Kafka messages consumed"), metric.WithUnit("1"))
	must("kafka_messages_consumed_total", err)

	m.KafkaConsumerErrors, err = meter.Int64Counter("kafka_consumer_errors_total",
		metric.WithDescription("Total number of Kafka consumer errors"), metric.WithUnit("1"))
	must("kafka_consumer_errors_total", err)

	m.KafkaConsumerLag, err = meter.Int64Gauge("kafka_consumer_lag",
		metric.WithDescription("Kafka consumer lag (messages behind)"), metric.WithUnit("1"))
	must("kafka_consumer_lag", err)

	m.GoroutinesActive, err = meter.Int64Gauge("goroutines_active",
		metric.WithDescription("Number of active goroutines"), metric.WithUnit("1"))
	must("goroutines_active", err)

	m.MemoryAllocated, err = meter.Int64Gauge("memory_allocated_bytes",
		metric.WithDescription("Memory allocated in bytes"), metric.WithUnit("By"))
	must("memory_allocated_bytes", err)

	m.MemoryHeap, err = meter.Int64Gauge("memory_heap_bytes",
		metric.WithDescription("Memory heap in bytes"), metric.WithUnit("By"))
	must("memory_heap_bytes", err)

	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("failed to create %d metric instruments: %v", len(errs), errs)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("OpenTelemetry metrics initialized with Prometheus exporter")
	return m, mux, nil
}

// GetMeter returns the global meter instance.
func GetMeter() metric.Meter { return meter }
