package app

import (
	"context"

	"github.com/crawlfrontier/frontier/frontier"
	"github.com/crawlfrontier/frontier/observability"
)

// metricsObserver feeds frontier activity into the OpenTelemetry counters,
// the seam the core package exposes so the ambient layer can watch it
// without the core importing observability itself.
type metricsObserver struct {
	metrics *observability.Metrics
	f       *frontier.Frontier
}

func newMetricsObserver(metrics *observability.Metrics, f *frontier.Frontier) *metricsObserver {
	return &metricsObserver{metrics: metrics, f: f}
}

func (o *metricsObserver) OnScheduled(rec frontier.URLRecord) {
	o.metrics.FrontierScheduledTotal.Add(context.Background(), 1)
	o.sampleGauges()
}

func (o *metricsObserver) OnDispatched(rec frontier.URLRecord, w frontier.Worker) {
	o.metrics.FrontierDispatchedTotal.Add(context.Background(), 1)
	o.sampleGauges()
}

func (o *metricsObserver) OnProcessed(rec frontier.URLRecord) {
	o.metrics.FrontierProcessedTotal.Add(context.Background(), 1)
	o.sampleGauges()
}

func (o *metricsObserver) OnAbandoned(rec frontier.URLRecord) {
	o.metrics.FrontierAbandonedTotal.Add(context.Background(), 1)
	o.sampleGauges()
}

func (o *metricsObserver) OnSeedRemoved(seed uint64, removed int) {
	o.metrics.FrontierSeedsRemoved.Add(context.Background(), 1)
	o.sampleGauges()
}

func (o *metricsObserver) sampleGauges() {
	observability.RecordFrontierGauges(o.metrics, o.f.QueueSize(), o.f.NumInProgress())
}
