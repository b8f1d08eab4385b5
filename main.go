package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/crawlfrontier/frontier/app"
	"github.com/crawlfrontier/frontier/handlers"
	"github.com/crawlfrontier/frontier/kafka"
	"github.com/crawlfrontier/frontier/middleware"
	"github.com/crawlfrontier/frontier/observability"
)

func main() {
	application := app.NewApp()
	cfg := application.Config

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	metrics, metricsMux, err := observability.InitMetrics("frontier", "0.1.0")
	if err != nil {
		slog.Error("failed to initialize metrics, continuing without them", "error", err)
		metrics = nil
	}
	if metrics != nil {
		stopSystemMetrics := observability.StartSystemMetricsCollection(metrics, cfg.PolitenessDelay)
		defer stopSystemMetrics()
	}

	container, err := app.NewContainer(context.Background(), cfg, metrics)
	if err != nil {
		slog.Error("failed to build frontier container", "error", err)
		panic(err)
	}
	defer container.Frontier.Close()

	if container.SeedConsumer != nil {
		if err := container.SeedConsumer.Start(cfg.SeedsTopic); err != nil {
			slog.Error("failed to start seed consumer", "error", err)
		} else {
			defer container.SeedConsumer.Stop()
		}
	}

	// Dummy consumer for the events topic (just logs messages for testing).
	if len(cfg.KafkaBrokers) > 0 {
		go func() {
			consumer, err := kafka.NewEventConsumer(cfg.KafkaBrokers)
			if err != nil {
				slog.Error("failed to create events consumer", "error", err)
				return
			}
			slog.Info("starting dummy consumer for events topic", "topic", cfg.EventsTopic)
			consumer.Consume(cfg.EventsTopic)
		}()
	}

	slog.Info("Starting application")

	application.Router.Use(middleware.RequestID())
	if metrics != nil {
		application.Router.Use(observability.MetricsMiddleware(metrics))
		application.Router.GET("/metrics", gin.WrapH(metricsMux))
	}

	application.Router.GET("/", handlers.HealthCheck)
	application.Router.GET("/stats", container.FrontierHandler.Stats)
	application.Router.GET("/validate", container.FrontierHandler.Validate)

	api := application.Router.Group("/")
	api.Use(middleware.AuthRequired())
	{
		api.POST("/seeds", container.FrontierHandler.ScheduleURL)
		api.DELETE("/seeds/:seedDocid", container.FrontierHandler.RemoveSeed)
		api.POST("/urls/batch", container.FrontierHandler.ScheduleBatch)
		api.POST("/workers/:workerID/next", container.FrontierHandler.NextURL)
		api.POST("/workers/:workerID/processed", container.FrontierHandler.Processed)
		api.POST("/workers/:workerID/abandon", container.FrontierHandler.Abandon)
	}

	application.Start()
}
