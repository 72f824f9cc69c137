package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/messaging/kafka"
)

// initPublisher поднимает Kafka producer, если заданы брокеры.
// Без брокеров или при ошибке подключения события не публикуются: сервер работает дальше.
func initPublisher(brokers []string, topic string, logger *log.Entry) (domain.EventPublisher, func()) {
	if len(brokers) == 0 {
		return domain.NoopPublisher{}, func() {}
	}

	producer, err := kafka.NewProducer(brokers, topic, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return domain.NoopPublisher{}, func() {}
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": producer.Topic()}).Info("kafka producer initialized")
	return producer, func() { closeKafka(producer, logger) }
}

// closeKafka закрывает producer, если он есть.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
