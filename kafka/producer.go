package kafka

import (
	"github.com/IBM/sarama"
)

// Producer wraps a synchronous sarama producer. It is referenced by the
// frontier's event-publication path the same way the teacher's services
// package held a *kafka.Producer for publishing indexing requests.
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer dials brokers and returns a producer that waits for the
// leader's ack before SendMessage returns.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer}, nil
}

// SendMessage publishes value to topic, keyed by key so that related
// messages (e.g. every event for one host) land on the same partition.
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close releases the underlying sarama producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
