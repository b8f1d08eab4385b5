package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every ambient and domain tunable the frontier service reads
// from the environment at startup.
type Config struct {
	Port string

	StorageFolder   string
	Resumable       bool
	PolitenessDelay time.Duration
	DefaultRPS      float64
	DefaultBurst    int

	KafkaBrokers     []string
	SeedsTopic       string
	EventsTopic      string
	KafkaConsumerGrp string

	JWTSecretKey string
}

// LoadConfig reads configuration from the environment (and an optional
// .env file), logging rather than panicking on a missing required value,
// matching the teacher's load-then-warn convention.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables from system", "error", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		slog.Error("PORT is not set")
		port = "8080"
	}

	storageFolder := os.Getenv("FRONTIER_STORAGE_FOLDER")
	if storageFolder == "" {
		slog.Error("FRONTIER_STORAGE_FOLDER is not set, defaulting to ./data")
		storageFolder = "./data"
	}

	resumable := true
	if v := os.Getenv("FRONTIER_RESUMABLE"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			slog.Error("FRONTIER_RESUMABLE is not a valid bool, defaulting to true", "value", v)
		} else {
			resumable = parsed
		}
	}

	politenessMs := envInt("FRONTIER_POLITENESS_DELAY_MS", 1000)
	defaultRPS := envFloat("FRONTIER_DEFAULT_RPS", 1.0)
	defaultBurst := envInt("FRONTIER_DEFAULT_BURST", 1)

	kafkaBrokersStr := os.Getenv("KAFKA_BROKERS")
	kafkaBrokers := []string{"kafka:29092"}
	if kafkaBrokersStr != "" {
		kafkaBrokers = strings.Split(kafkaBrokersStr, ",")
	}

	seedsTopic := os.Getenv("FRONTIER_SEEDS_TOPIC")
	if seedsTopic == "" {
		seedsTopic = "frontier.seeds"
	}
	eventsTopic := os.Getenv("FRONTIER_EVENTS_TOPIC")
	if eventsTopic == "" {
		eventsTopic = "frontier.events"
	}
	consumerGroup := os.Getenv("FRONTIER_KAFKA_CONSUMER_GROUP")
	if consumerGroup == "" {
		consumerGroup = "frontier-seed-consumer"
	}

	return &Config{
		Port: port,

		StorageFolder:   storageFolder,
		Resumable:       resumable,
		PolitenessDelay: time.Duration(politenessMs) * time.Millisecond,
		DefaultRPS:      defaultRPS,
		DefaultBurst:    defaultBurst,

		KafkaBrokers:     kafkaBrokers,
		SeedsTopic:       seedsTopic,
		EventsTopic:      eventsTopic,
		KafkaConsumerGrp: consumerGroup,

		JWTSecretKey: GetJWTSecretKey(),
	}
}

func GetJWTSecretKey() string {
	secretKey := os.Getenv("JWT_SECRET_KEY")
	if secretKey == "" {
		slog.Error("JWT_SECRET_KEY is not set")
	}
	return secretKey
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("invalid integer env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Error("invalid float env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}
