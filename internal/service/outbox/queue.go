// Package outbox развязывает менеджер заказов и брокер: события сначала
// попадают в очередь, а Worker отправляет их в Kafka с повторами.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
)

// Queue ставит события заказов в очередь вместо синхронной отправки.
type Queue struct {
	repo domain.OutboxRepository
}

// NewQueue создаёт очередь поверх репозитория.
func NewQueue(repo domain.OutboxRepository) *Queue {
	return &Queue{repo: repo}
}

// PublishOrderEvent сохраняет событие; отправкой занимается Worker.
func (q *Queue) PublishOrderEvent(_ context.Context, event *kafka.OrderEvent) error {
	if event == nil {
		return fmt.Errorf("outbox: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, err = q.repo.Enqueue(domain.OutboxMessage{
		ID:        event.EventID,
		OrderID:   event.OrderID,
		EventType: string(event.EventType),
		Payload:   payload,
		CreatedAt: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("enqueue order event: %w", err)
	}
	return nil
}
