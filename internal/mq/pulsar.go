package mq

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmi-project/dmi-gateway/internal/config"

	"github.com/apache/pulsar-client-go/pulsar"
	"go.uber.org/zap"
)

type PulsarMQ struct {
	client    pulsar.Client
	logger    *zap.Logger
	mu        sync.Mutex
	producers map[string]pulsar.Producer
	consumers map[string]pulsar.Consumer
}

func NewPulsarMQ(cfg *config.PulsarConfig, logger *zap.Logger) (*PulsarMQ, error) {
	client, err := newPulsarClient(cfg)
	if err != nil {
		return nil, err
	}

	return &PulsarMQ{
		client:    client,
		logger:    logger.Named("pulsar"),
		producers: make(map[string]pulsar.Producer),
		consumers: make(map[string]pulsar.Consumer),
	}, nil
}

func (mq *PulsarMQ) Publish(ctx context.Context, topic string, message []byte) error {
	producer, err := mq.getProducer(topic)
	if err != nil {
		return err
	}

	_, err = producer.Send(ctx, &pulsar.ProducerMessage{Payload: message})
	return err
}

// Receive returns the next payload on topic. Messages are acked as soon as
// they are handed over.
func (mq *PulsarMQ) Receive(ctx context.Context, topic string) ([]byte, error) {
	consumer, err := mq.getConsumer(topic)
	if err != nil {
		return nil, err
	}

	msg, err := consumer.Receive(ctx)
	if err != nil {
		return nil, err
	}

	if err := consumer.Ack(msg); err != nil {
		mq.logger.Warn("failed to ack message", zap.String("topic", topic), zap.Error(err))
	}

	return msg.Payload(), nil
}

func (mq *PulsarMQ) CloseTopic(topic string) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if producer, ok := mq.producers[topic]; ok {
		producer.Close()
		delete(mq.producers, topic)
	}

	if consumer, ok := mq.consumers[topic]; ok {
		consumer.Close()
		delete(mq.consumers, topic)
	}

	return nil
}

func (mq *PulsarMQ) Close() error {
	mq.mu.Lock()
	for topic, producer := range mq.producers {
		producer.Close()
		delete(mq.producers, topic)
	}
	for topic, consumer := range mq.consumers {
		consumer.Close()
		delete(mq.consumers, topic)
	}
	mq.mu.Unlock()

	mq.client.Close()
	return nil
}

func (mq *PulsarMQ) getProducer(topic string) (pulsar.Producer, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if producer, ok := mq.producers[topic]; ok {
		return producer, nil
	}

	producer, err := mq.client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer for %s: %w", topic, err)
	}

	mq.producers[topic] = producer
	return producer, nil
}

func (mq *PulsarMQ) getConsumer(topic string) (pulsar.Consumer, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if consumer, ok := mq.consumers[topic]; ok {
		return consumer, nil
	}

	consumer, err := mq.client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		Type:             pulsar.Exclusive,
		SubscriptionName: subscriptionName(topic),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	mq.consumers[topic] = consumer
	return consumer, nil
}

func subscriptionName(topic string) string {
	return strings.ReplaceAll(topic, "/", "-")
}

func newPulsarClient(cfg *config.PulsarConfig) (pulsar.Client, error) {
	options := pulsar.ClientOptions{
		URL:               cfg.URL,
		OperationTimeout:  cfg.OperationTimeout,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}

	client, err := pulsar.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create pulsar client: %w", err)
	}

	return client, nil
}
