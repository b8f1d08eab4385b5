package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crawlfrontier/frontier/config"
	"github.com/crawlfrontier/frontier/frontier"
	"github.com/crawlfrontier/frontier/handlers"
	"github.com/crawlfrontier/frontier/kafka"
	"github.com/crawlfrontier/frontier/observability"
)

// Container holds every wired dependency the HTTP routes and background
// consumers need, grounded on the teacher's app.Container shape (there:
// repositories/services/handlers; here: store/fetcher/frontier/handler).
type Container struct {
	Frontier        *frontier.Frontier
	FrontierHandler *handlers.FrontierHandler
	Producer        *kafka.Producer
	SeedConsumer    *kafka.SeedConsumer
	Metrics         *observability.Metrics
}

// NewContainer opens the embedded store, builds the frontier, and wires
// the HTTP handler and optional Kafka producer/consumer. Unlike the
// teacher's Postgres dependency, the embedded store is never optional;
// Kafka is, matching the teacher's "continue without Kafka" fallback in
// main.go.
func NewContainer(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*Container, error) {
	if err := os.MkdirAll(cfg.StorageFolder, 0o755); err != nil {
		return nil, err
	}
	storePath := filepath.Join(cfg.StorageFolder, "frontier.db")
	store, err := frontier.OpenSQLiteStore(storePath, cfg.Resumable)
	if err != nil {
		return nil, err
	}

	fetcher := frontier.NewTokenBucketPageFetcher(cfg.PolitenessDelay, cfg.DefaultRPS, cfg.DefaultBurst)

	f, err := frontier.New(ctx, store, fetcher, frontier.Config{
		PolitenessDelay: cfg.PolitenessDelay,
		Resumable:       cfg.Resumable,
	})
	if err != nil {
		return nil, err
	}

	if metrics != nil {
		f.SetObserver(newMetricsObserver(metrics, f))
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("failed to create Kafka producer, continuing without event publication", "error", err)
			producer = nil
		}
	}

	var publisher handlers.EventPublisher
	if producer != nil {
		publisher = producer
	}
	frontierHandler := handlers.NewFrontierHandler(f, publisher, cfg.EventsTopic, metrics)

	var seedConsumer *kafka.SeedConsumer
	if len(cfg.KafkaBrokers) > 0 {
		seedConsumer, err = kafka.NewSeedConsumer(cfg.KafkaBrokers, f)
		if err != nil {
			slog.Error("failed to create Kafka seed consumer, seeds must be scheduled over HTTP", "error", err)
			seedConsumer = nil
		}
	}

	return &Container{
		Frontier:        f,
		FrontierHandler: frontierHandler,
		Producer:        producer,
		SeedConsumer:    seedConsumer,
		Metrics:         metrics,
	}, nil
}
