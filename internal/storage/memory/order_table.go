package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// orderTableInMemory: таблица ожидающих оплаты заказов.
type orderTableInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderTable возвращает in-memory таблицу заказов.
func NewOrderTable() domain.OrderTable {
	return &orderTableInMemory{
		items: make(map[string]domain.Order),
	}
}

// Insert сохраняет новый заказ, если ID ещё не занят.
func (t *orderTableInMemory) Insert(order domain.Order) error {
	if order.ID == "" {
		return domain.ErrOrderIDRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[order.ID]; exists {
		return domain.ErrOrderExists
	}
	t.items[order.ID] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (t *orderTableInMemory) Get(id string) (domain.Order, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	order, ok := t.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// Take удаляет заказ и возвращает его. Из двух конкурентных вызовов успешен только один.
func (t *orderTableInMemory) Take(id string) (domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order, ok := t.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	delete(t.items, id)
	return order, nil
}

// ListByBuyer возвращает заказы покупателя, новые первыми.
func (t *orderTableInMemory) ListByBuyer(buyerID string) ([]domain.Order, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range t.items {
		if order.BuyerID != buyerID {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Len возвращает число заказов в таблице.
func (t *orderTableInMemory) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

var _ domain.OrderTable = (*orderTableInMemory)(nil)
