package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type KafkaProducerTestSuite struct {
	suite.Suite
	writer   *fakeWriter
	producer *KafkaProducer
}

func TestKafkaProducerSuite(t *testing.T) {
	suite.Run(t, new(KafkaProducerTestSuite))
}

func (s *KafkaProducerTestSuite) SetupTest() {
	s.writer = &fakeWriter{}
	s.producer = &KafkaProducer{writer: s.writer}
}

func (s *KafkaProducerTestSuite) TestPublish() {
	event := domain.OutboxEvent{
		ID:        uuid.New(),
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Kind:      domain.EventKindEmail,
		UserID:    42,
		Payload:   json.RawMessage(`{"template":"PLAN_APPROVED"}`),
	}

	s.Require().NoError(s.producer.Publish(s.T().Context(), event))
	s.Require().Len(s.writer.messages, 1)

	msg := s.writer.messages[0]
	s.Equal("42", string(msg.Key))
	s.Equal(event.ID.String(), string(msg.Headers[0].Value))

	var envelope Envelope
	s.Require().NoError(json.Unmarshal(msg.Value, &envelope))
	s.Equal(event.ID, envelope.ID)
	s.Equal(domain.EventKindEmail, envelope.Kind)
	s.JSONEq(`{"template":"PLAN_APPROVED"}`, string(envelope.Payload))
}

func (s *KafkaProducerTestSuite) TestPublishError() {
	s.writer.err = errors.New("kafka: leader not available")
	err := s.producer.Publish(s.T().Context(), domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindEmail})
	s.Require().ErrorIs(err, s.writer.err)

	s.Require().NoError(s.producer.Close())
	s.True(s.writer.closed)
}

func (s *KafkaProducerTestSuite) TestEmptyPayload() {
	raw, err := MarshalEnvelope(domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindPush})
	s.Require().NoError(err)
	s.Contains(string(raw), `"payload":{}`)
}
