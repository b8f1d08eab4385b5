package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/IBM/sarama"

	"github.com/crawlfrontier/frontier/frontier"
)

// Scheduler is the subset of the frontier's facade the seed consumer
// depends on, narrowed so tests can substitute a fake.
type Scheduler interface {
	Schedule(ctx context.Context, rec frontier.URLRecord) (bool, error)
}

// SeedConsumer subscribes to the seeds topic and schedules every message
// it receives, grounded on consumers.IndexingConsumer's partition fan-out.
type SeedConsumer struct {
	consumer  sarama.Consumer
	scheduler Scheduler
	wg        sync.WaitGroup
	stopCh    chan struct{}
}

// NewSeedConsumer dials brokers for plain (non-group) consumption of the
// seeds topic.
func NewSeedConsumer(brokers []string, scheduler Scheduler) (*SeedConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &SeedConsumer{
		consumer:  consumer,
		scheduler: scheduler,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins consuming topic in the background, one goroutine per
// partition.
func (c *SeedConsumer) Start(topic string) error {
	partitions, err := c.consumer.Partitions(topic)
	if err != nil {
		return err
	}

	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			slog.Error("failed to consume partition", "partition", partition, "error", err)
			continue
		}

		c.wg.Add(1)
		go c.consumePartition(pc)
	}

	slog.Info("SeedConsumer started", "topic", topic, "partitions", len(partitions))
	return nil
}

func (c *SeedConsumer) consumePartition(pc sarama.PartitionConsumer) {
	defer c.wg.Done()
	defer pc.Close()

	for {
		select {
		case <-c.stopCh:
			return
		case err := <-pc.Errors():
			slog.Error("seed consumer error", "error", err)
		case msg := <-pc.Messages():
			c.handleMessage(msg)
		}
	}
}

func (c *SeedConsumer) handleMessage(msg *sarama.ConsumerMessage) {
	var payload SeedMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		slog.Error("failed to unmarshal seed message", "error", err)
		return
	}

	host, err := hostOf(payload.URL)
	if err != nil {
		slog.Error("seed message has unparseable URL", "url", payload.URL, "error", err)
		return
	}

	seedDocid := payload.SeedDocid
	if seedDocid == 0 {
		seedDocid = payload.Docid
	}

	rec := frontier.URLRecord{
		Docid:     payload.Docid,
		SeedDocid: seedDocid,
		Priority:  payload.Priority,
		URL:       payload.URL,
		Host:      host,
	}

	accepted, err := c.scheduler.Schedule(context.Background(), rec)
	if err != nil {
		slog.Error("failed to schedule seed", "docid", rec.Docid, "error", err)
		return
	}
	slog.Info("seed scheduled", "docid", rec.Docid, "host", rec.Host, "accepted", accepted,
		"partition", msg.Partition, "offset", msg.Offset)
}

// Stop gracefully halts consumption.
func (c *SeedConsumer) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.consumer.Close()
	slog.Info("SeedConsumer stopped")
}

// hostOf lowercases and extracts the hostname portion of rawURL.
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}
