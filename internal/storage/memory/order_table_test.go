package memory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

func pendingOrder(id, buyer string, created time.Time) domain.Order {
	return domain.Order{
		ID:          id,
		BuyerID:     buyer,
		ProductCode: "spo3b",
		Qty:         1,
		UnitPrice:   10000,
		Subtotal:    10000,
		Total:       10000,
		Status:      domain.OrderStatusPending,
		CreatedAt:   created,
	}
}

func TestOrderTable_InsertGetTake(t *testing.T) {
	table := memory.NewOrderTable()
	now := time.Now().UTC()

	if err := table.Insert(pendingOrder("PBS-1", "buyer-1", now)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := table.Insert(pendingOrder("PBS-1", "buyer-1", now)); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}
	if err := table.Insert(domain.Order{}); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}

	got, err := table.Get("PBS-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BuyerID != "buyer-1" {
		t.Fatalf("unexpected buyer %s", got.BuyerID)
	}

	if _, err := table.Take("PBS-1"); err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if _, err := table.Take("PBS-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second take, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d", table.Len())
	}
}

func TestOrderTable_TakeIsExclusive(t *testing.T) {
	table := memory.NewOrderTable()
	if err := table.Insert(pendingOrder("PBS-race", "buyer", time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := table.Take("PBS-race"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful take, got %d", wins)
	}
}

func TestOrderTable_ListByBuyer(t *testing.T) {
	table := memory.NewOrderTable()
	base := time.Now().UTC()

	_ = table.Insert(pendingOrder("PBS-1", "buyer-1", base))
	_ = table.Insert(pendingOrder("PBS-2", "buyer-1", base.Add(time.Minute)))
	_ = table.Insert(pendingOrder("PBS-3", "buyer-2", base))

	list, err := table.ListByBuyer("buyer-1")
	if err != nil {
		t.Fatalf("ListByBuyer failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if list[0].ID != "PBS-2" {
		t.Fatalf("expected newest first, got %s", list[0].ID)
	}
}
