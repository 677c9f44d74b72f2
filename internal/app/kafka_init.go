package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/service/outbox"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)


// initKafkaProducer создаёт producer событий заказов, если заданы брокеры.
// Ошибка подключения не останавливает бота: события просто не публикуются.
func initKafkaProducer(brokers []string, topic string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers, topic)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without order events")
		return nil
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": topic}).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// newOutbox собирает очередь событий заказов и воркер, отправляющий их в producer.
func newOutbox(cfg Config, producer *kafka.Producer, m *metrics.OrderMetrics, logger *log.Entry) (*outbox.Queue, *outbox.Worker) {
	repo := memory.NewOutboxRepository()
	worker := outbox.NewWorker(repo, producer,
		outbox.WithDeadLetter(producer, producer.Topic()+kafka.DeadLetterSuffix),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithMetrics(m),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
	)
	return outbox.NewQueue(repo), worker
}
