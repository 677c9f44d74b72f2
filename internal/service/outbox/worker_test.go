package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

func encodedEvent(t *testing.T, orderID string, eventType kafka.EventType) domain.OutboxMessage {
	t.Helper()
	event := kafka.NewOrderEvent(eventType, orderID, "6281@c.us", "pending", 25000, nil)
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return domain.OutboxMessage{
		ID:        event.EventID,
		OrderID:   orderID,
		EventType: string(eventType),
		Payload:   payload,
	}
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{encodedEvent(t, "PBS-1-aaaaaa", kafka.EventTypeOrderCreated)}}
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := len(repo.sentIDs); got != 1 {
		t.Fatalf("expected 1 sent mark, got %d", got)
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 publish call, got %d", got)
	}
	if publisher.last.OrderID != "PBS-1-aaaaaa" || publisher.last.EventType != kafka.EventTypeOrderCreated {
		t.Fatalf("unexpected published event: %+v", publisher.last)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDeadLetterAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{encodedEvent(t, "PBS-2-bbbbbb", kafka.EventTypeOrderReleased)}}
	publisher := &stubPublisher{err: errors.New("broker down")}
	deadLetter := &stubDeadLetter{}

	worker := NewWorker(repo, publisher,
		WithDeadLetter(deadLetter, "orders.dlq"),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 0 {
		t.Fatalf("expected 0 sent marks, got %d", got)
	}
	if got := len(repo.failedIDs); got != 1 {
		t.Fatalf("expected 1 failed mark, got %d", got)
	}
	if len(deadLetter.topics) != 1 || deadLetter.topics[0] != "orders.dlq" {
		t.Fatalf("expected one dead letter to orders.dlq, got %v", deadLetter.topics)
	}
	if deadLetter.keys[0] != "PBS-2-bbbbbb" {
		t.Fatalf("dead letter must be keyed by order id, got %s", deadLetter.keys[0])
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{encodedEvent(t, "PBS-3-cccccc", kafka.EventTypeOrderSettled)}}
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 1 {
		t.Fatalf("expected 1 sent mark, got %d", got)
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
}

func TestWorker_ProcessOnce_CorruptPayloadFailsWithoutPublishing(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{{ID: "bad", OrderID: "PBS-4-dddddd", Payload: []byte("{")}}}
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 0 {
		t.Fatalf("expected no publish calls, got %d", got)
	}
	if len(repo.failedIDs) != 1 || repo.failedIDs[0] != "bad" {
		t.Fatalf("expected corrupt record to be marked failed, got %v", repo.failedIDs)
	}
}

func TestQueue_EnqueuesForWorker(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	queue := NewQueue(repo)
	event := kafka.NewOrderEvent(kafka.EventTypeOrderCreated, "PBS-5-eeeeee", "6281@c.us", "pending", 10000, nil)

	if err := queue.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := queue.PublishOrderEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}

	publisher := &stubPublisher{}
	NewWorker(repo, publisher, WithRetryBaseDelay(0)).ProcessOnce(context.Background())

	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 publish call, got %d", got)
	}
	if publisher.last.EventID != event.EventID {
		t.Fatalf("event id must survive the queue: %s != %s", publisher.last.EventID, event.EventID)
	}
	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty queue, got %d", stats.PendingCount)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(10*time.Millisecond))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := worker.retryBackoff(tt.attempt); got != tt.want {
			t.Errorf("retryBackoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

type stubOutboxRepo struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(id string) error {
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
	last           kafka.OrderEvent
}

func (s *stubPublisher) PublishOrderEvent(_ context.Context, event *kafka.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.last = *event
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		return err
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

type stubDeadLetter struct {
	topics []string
	keys   []string
}

func (s *stubDeadLetter) PublishEvent(topic string, key string, _ interface{}) error {
	s.topics = append(s.topics, topic)
	s.keys = append(s.keys, key)
	return nil
}

var (
	_ domain.OutboxRepository = (*stubOutboxRepo)(nil)
	_ Publisher               = (*stubPublisher)(nil)
	_ DeadLetterPublisher     = (*stubDeadLetter)(nil)
	_ Publisher               = (*kafka.Producer)(nil)
	_ DeadLetterPublisher     = (*kafka.Producer)(nil)
)
