package domain

import (
	"errors"
	"time"
)

// ErrOutboxMessageNotFound: в очереди событий нет записи с таким ID.
var ErrOutboxMessageNotFound = errors.New("outbox message not found")

// OutboxMessage: событие заказа, ожидающее отправки в шину.
type OutboxMessage struct {
	ID        string
	OrderID   string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxStats: размер очереди и возраст самой старой неотправленной записи.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository: очередь событий между менеджером заказов и брокером.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	// PullPending возвращает до limit неотправленных записей, старые первыми.
	PullPending(limit int) ([]OutboxMessage, error)
	MarkSent(id string) error
	MarkFailed(id string) error
	Stats() (OutboxStats, error)
}
