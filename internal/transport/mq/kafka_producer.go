// Package mq публикует события outbox в Kafka.
package mq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 10 * time.Millisecond
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer публикует события в один топик. Ключом сообщения служит id пользователя, поэтому события
// одного пользователя попадают в одну партицию и читаются по порядку.
type KafkaProducer struct {
	writer MessageWriter
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			BatchSize:              defaultBatchSize,
			BatchTimeout:           defaultBatchTimeout,
		},
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, event domain.OutboxEvent) error {
	value, err := MarshalEnvelope(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID.String())},
			{Key: "event-kind", Value: []byte(event.Kind)},
		},
		Time: time.Now(),
	}
	if writeErr := p.writer.WriteMessages(ctx, msg); writeErr != nil {
		return fmt.Errorf("kafka write %s event: %w", event.Kind, writeErr)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close() //nolint:wrapcheck
}
