// Command seed_publisher publishes a single seed URL onto the Kafka
// seeds topic for a running frontier service to pick up, grounded on
// cmd/sample_consumer's flag-driven sarama harness (there: a consumer
// printing messages; here: a one-shot producer).
package main

import (
	"encoding/json"
	"flag"
	"log"
	"strings"

	"github.com/crawlfrontier/frontier/idgen"
	"github.com/crawlfrontier/frontier/kafka"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
	topic := flag.String("topic", "frontier.seeds", "Kafka topic to publish to")
	seedURL := flag.String("url", "", "seed URL to publish (required)")
	priority := flag.Int("priority", 0, "scheduling priority, smaller is more urgent")

	flag.Parse()

	if *seedURL == "" {
		log.Fatal("seed URL is required. Use -url flag.")
	}

	producer, err := kafka.NewProducer(strings.Split(*brokers, ","))
	if err != nil {
		log.Fatalf("failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	docid := idgen.New().Next()
	msg := kafka.SeedMessage{
		Docid:     docid,
		SeedDocid: docid,
		URL:       *seedURL,
		Priority:  int8(*priority),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Fatalf("failed to marshal seed message: %v", err)
	}

	if err := producer.SendMessage(*topic, *seedURL, string(payload)); err != nil {
		log.Fatalf("failed to publish seed: %v", err)
	}

	log.Printf("published seed docid=%d url=%s topic=%s", docid, *seedURL, *topic)
}
