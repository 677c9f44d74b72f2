package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// maxEventsPerOrder ограничивает журнал одного заказа; старые события вытесняются.
const maxEventsPerOrder = 64

// timelineRepositoryInMemory хранит события заказов в памяти процесса.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет событие с сохранением хронологического порядка.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.events[event.OrderID]
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].Occurred.After(event.Occurred)
	})
	list = append(list, domain.TimelineEvent{})
	copy(list[idx+1:], list[idx:])
	list[idx] = event

	if len(list) > maxEventsPerOrder {
		list = list[len(list)-maxEventsPerOrder:]
	}
	r.events[event.OrderID] = list

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
