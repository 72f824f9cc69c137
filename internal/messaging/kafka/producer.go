package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// Producer публикует события заказов в Kafka и реализует domain.EventPublisher.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Entry
}

// NewProducer создаёт синхронный producer. Пустой topic заменяется TopicOrderEvents.
func NewProducer(brokers []string, topic string, logger *log.Entry) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newProducer(producer, topic, logger), nil
}

func newProducer(producer sarama.SyncProducer, topic string, logger *log.Entry) *Producer {
	if topic == "" {
		topic = TopicOrderEvents
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, topic: topic, logger: logger}
}

// PublishOrderEvent отправляет событие с ключом = ID заказа, чтобы события одного
// заказа попадали в одну партицию. Контекст трассировки передаётся в заголовках.
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType domain.OrderEventType, order domain.Order) error {
	event := NewOrderEvent(eventType, order)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventType), Value: []byte(eventType)},
		{Key: []byte(HeaderEventID), Value: []byte(event.EventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	key := strconv.FormatInt(order.ID, 10)
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headers,
		Timestamp: event.Timestamp,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic":      p.topic,
			"event_type": eventType,
			"order_id":   order.ID,
		}).Error("failed to send order event to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":      p.topic,
		"event_type": eventType,
		"order_id":   order.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("событие заказа отправлено")
	return nil
}

// Topic возвращает топик событий.
func (p *Producer) Topic() string {
	return p.topic
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

var _ domain.EventPublisher = (*Producer)(nil)
