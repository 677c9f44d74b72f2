package kafka

import (
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated  EventType = "order.created"
	EventTypeOrderSettled  EventType = "order.settled"
	EventTypeOrderReleased EventType = "order.released"
)

// Топики по умолчанию.
const (
	TopicOrderEvents = "storebot.order.events"
	// TopicOrderEventsDLQ принимает события, которые не удалось отправить.
	TopicOrderEventsDLQ = TopicOrderEvents + DeadLetterSuffix
	DeadLetterSuffix    = ".dlq"
)

// Kafka headers
const (
	HeaderEventType    = "x-event-type"
	HeaderEventID      = "x-event-id"
	HeaderReplayedFrom = "x-replayed-from"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventID   string                 `json:"event_id"`
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	BuyerID   string                 `json:"buyer_id"`
	Status    string                 `json:"status"`
	Total     int64                  `json:"total"`
	Reason    string                 `json:"reason,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, buyerID, status string, total int64, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		OrderID:   orderID,
		BuyerID:   buyerID,
		Status:    status,
		Total:     total,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
