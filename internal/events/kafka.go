package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cairn-io/cairn/internal/logging"
)

// KafkaConfig configures the Kafka event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// PublishTimeout bounds a single produce. Zero means 10s.
	PublishTimeout time.Duration
}

// KafkaPublisher publishes events to a Kafka topic keyed by frame ID so
// that per-frame event order is preserved within a partition.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the event topic
// exists. Topic creation failures other than "already exists" are
// returned to the caller.
func NewKafkaPublisher(cfg KafkaConfig, logger *logging.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("events: no topic configured")
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("events: creating kafka client: %w", err)
	}

	if err := ensureTopic(client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaPublisher{
		client:  client,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  logger.With(map[string]any{"component": "events"}),
	}, nil
}

func ensureTopic(client *kgo.Client, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("events: creating topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !strings.Contains(res.Err.Error(), "TOPIC_ALREADY_EXISTS") {
			return fmt.Errorf("events: creating topic %s: %w", topic, res.Err)
		}
	}
	return nil
}

// Publish produces the event synchronously within the configured timeout.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("events: encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.FrameID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("events: producing %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warnf("flush on close", map[string]any{"error": err.Error()})
	}
	p.client.Close()
	return nil
}
