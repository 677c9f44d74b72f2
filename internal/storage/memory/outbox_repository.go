package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const defaultOutboxPullLimit = 100

type outboxStatus int

const (
	outboxPending outboxStatus = iota
	outboxSent
	outboxFailed
)

// outboxRecord хранит событие и его статус отправки.
type outboxRecord struct {
	msg    domain.OutboxMessage
	status outboxStatus
	seq    uint64
}

// outboxRepositoryInMemory: очередь событий заказов в памяти процесса.
// Отправленные записи удаляются сразу, сбойные остаются для диагностики.
type outboxRepositoryInMemory struct {
	mu      sync.RWMutex
	records map[string]*outboxRecord
	seq     uint64
	now     func() time.Time
}

// NewOutboxRepository создаёт in-memory реализацию OutboxRepository.
func NewOutboxRepository() domain.OutboxRepository {
	return &outboxRepositoryInMemory{
		records: make(map[string]*outboxRecord),
		now:     time.Now,
	}
}

// Enqueue сохраняет событие как неотправленное.
func (r *outboxRepositoryInMemory) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.OrderID == "" {
		return domain.OutboxMessage{}, domain.ErrOrderIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now().UTC()
	}
	r.seq++
	r.records[msg.ID] = &outboxRecord{msg: msg, status: outboxPending, seq: r.seq}
	return msg, nil
}

// PullPending возвращает неотправленные записи в порядке постановки.
func (r *outboxRepositoryInMemory) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPullLimit
	}

	r.mu.RLock()
	pending := make([]*outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == outboxPending {
			pending = append(pending, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// MarkSent удаляет отправленную запись.
func (r *outboxRepositoryInMemory) MarkSent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return domain.ErrOutboxMessageNotFound
	}
	delete(r.records, id)
	return nil
}

// MarkFailed снимает запись с отправки.
func (r *outboxRepositoryInMemory) MarkFailed(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxMessageNotFound
	}
	rec.status = outboxFailed
	return nil
}

// Stats считает неотправленные записи.
func (r *outboxRepositoryInMemory) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range r.records {
		if rec.status != outboxPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.msg.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.msg.CreatedAt
		}
	}
	return stats, nil
}
