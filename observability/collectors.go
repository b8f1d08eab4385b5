package observability

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StartSystemMetricsCollection starts a background goroutine that samples
// goroutine count and memory stats every interval. Returns a stop function.
func StartSystemMetricsCollection(metrics *Metrics, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				collectSystemMetrics(metrics)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}

func collectSystemMetrics(metrics *Metrics) {
	ctx := context.Background()

	metrics.GoroutinesActive.Record(ctx, int64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.MemoryAllocated.Record(ctx, int64(m.Alloc))
	metrics.MemoryHeap.Record(ctx, int64(m.HeapAlloc))
}

// RecordFrontierGauges samples the frontier's current queue/in-progress
// size. Called by the app's frontier observer after every schedule,
// dispatch, processed, abandon and seed-removal notification.
func RecordFrontierGauges(metrics *Metrics, queueSize, inProgress int) {
	ctx := context.Background()
	metrics.FrontierQueueSize.Record(ctx, int64(queueSize))
	metrics.FrontierInProgress.Record(ctx, int64(inProgress))
}

// RecordKafkaConsumerLag records consumer lag for a topic/partition.
func RecordKafkaConsumerLag(metrics *Metrics, topic string, partition int32, lag int64) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
	}
	metrics.KafkaConsumerLag.Record(ctx, lag, metric.WithAttributes(attrs...))
}

// RecordDispatchWait records how long a GetNextURL call spent blocked
// before a URL became available.
func RecordDispatchWait(metrics *Metrics, d time.Duration) {
	metrics.FrontierDispatchLatency.Record(context.Background(), d.Seconds())
}
