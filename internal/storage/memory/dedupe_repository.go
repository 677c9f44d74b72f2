package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

type dedupeRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.DedupeRecord
	now   func() time.Time
}

// NewDedupeRepository создаёт in-memory реализацию DedupeRepository.
func NewDedupeRepository() domain.DedupeRepository {
	return NewDedupeRepositoryWithClock(nil)
}

// NewDedupeRepositoryWithClock позволяет подменить источник времени (для тестов).
func NewDedupeRepositoryWithClock(now func() time.Time) domain.DedupeRepository {
	if now == nil {
		now = time.Now
	}
	return &dedupeRepositoryInMemory{
		items: make(map[string]domain.DedupeRecord),
		now:   now,
	}
}

// Add регистрирует ключ. Истёкшая, но ещё не вычищенная запись перезаписывается.
func (r *dedupeRepositoryInMemory) Add(key string, ttlAt time.Time) (domain.DedupeRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.DedupeRecord{}, domain.ErrDedupeKeyRequired
	}

	now := r.now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(10 * time.Minute)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.items[key]; ok && !existing.Expired(now) {
		return existing, domain.ErrDedupeKeyExists
	}

	record := domain.DedupeRecord{
		Key:       key,
		TTLAt:     ttlAt,
		CreatedAt: now,
	}
	r.items[key] = record
	return record, nil
}

func (r *dedupeRepositoryInMemory) Get(key string) (domain.DedupeRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.DedupeRecord{}, domain.ErrDedupeKeyRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[key]
	if !ok || record.Expired(r.now().UTC()) {
		return domain.DedupeRecord{}, domain.ErrDedupeKeyNotFound
	}
	return record, nil
}

// Delete убирает ключ досрочно (откат после неудачного finalize).
func (r *dedupeRepositoryInMemory) Delete(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrDedupeKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key]; !ok {
		return domain.ErrDedupeKeyNotFound
	}
	delete(r.items, key)
	return nil
}

func (r *dedupeRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.items {
		if record.TTLAt.After(before) {
			continue
		}

		delete(r.items, key)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

var _ domain.DedupeRepository = (*dedupeRepositoryInMemory)(nil)
