package kafka

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
)

// EventConsumer logs DispatchEvent/SeedDoneEvent traffic off the events
// topic. It exists as a cheap observability tap, adapted from the
// teacher's dummy website-content consumer.
type EventConsumer struct {
	consumer sarama.Consumer
}

// NewEventConsumer dials brokers for plain (non-group) consumption.
func NewEventConsumer(brokers []string) (*EventConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &EventConsumer{consumer: consumer}, nil
}

// Consume logs every message on topic until all partitions drain. Intended
// to run in its own goroutine.
func (c *EventConsumer) Consume(topic string) {
	partitions, err := c.consumer.Partitions(topic)
	if err != nil {
		slog.Error("failed to list partitions", "topic", topic, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			slog.Error("failed to consume partition", "topic", topic, "partition", partition, "error", err)
			continue
		}

		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			for message := range pc.Messages() {
				logEvent(message)
			}
		}(pc)
	}
	wg.Wait()
}

func logEvent(message *sarama.ConsumerMessage) {
	var dispatch DispatchEvent
	if err := json.Unmarshal(message.Value, &dispatch); err == nil && dispatch.Docid != 0 {
		slog.Info("dispatch event", "docid", dispatch.Docid, "host", dispatch.Host, "worker", dispatch.WorkerID,
			"partition", message.Partition, "offset", message.Offset)
		return
	}

	var seedDone SeedDoneEvent
	if err := json.Unmarshal(message.Value, &seedDone); err == nil && seedDone.SeedDocid != 0 {
		slog.Info("seed done event", "seed_docid", seedDone.SeedDocid,
			"partition", message.Partition, "offset", message.Offset)
		return
	}

	slog.Info("event received", "key", string(message.Key), "partition", message.Partition, "offset", message.Offset)
}
