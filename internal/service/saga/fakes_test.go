package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vladislavdragonenkov/storebot/internal/chat"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/service/inventory"
	"github.com/vladislavdragonenkov/storebot/internal/service/payment"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock срабатывает только по Advance, колбэки вызываются без внутренней блокировки.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type stubCatalog struct {
	products map[string]domain.Product
	promos   map[string]domain.Promo
	noPromos bool
}

func (s stubCatalog) LookupByCode(code string) (domain.Product, bool) {
	p, ok := s.products[code]
	return p, ok
}

func (s stubCatalog) Promo(code string) (domain.Promo, bool) {
	p, ok := s.promos[code]
	return p, ok
}

func (s stubCatalog) PromosEnabled() bool {
	return !s.noPromos
}

type capturePublisher struct {
	mu     sync.Mutex
	events []kafka.OrderEvent
}

func (p *capturePublisher) PublishOrderEvent(_ context.Context, event *kafka.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *capturePublisher) Types() []kafka.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]kafka.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	clock     *fakeClock
	ledger    *inventory.MockService
	gateway   *payment.MockService
	messenger *chat.Recorder
	publisher *capturePublisher
	manager   *Manager
}

const testPayTTL = 20 * time.Minute

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newFakeClock()
	f := &fixture{
		clock:     clock,
		ledger:    inventory.NewMockService(),
		gateway:   payment.NewMockService(),
		messenger: chat.NewRecorder(),
		publisher: &capturePublisher{},
	}
	cat := stubCatalog{
		products: map[string]domain.Product{
			"spo3b": {Code: "spo3b", Name: "Spotify 3 Bulan", Price: 10000},
		},
		promos: map[string]domain.Promo{
			"HEMAT": {Code: "HEMAT", Type: domain.PromoTypePercent, Value: 10, AppliesTo: []string{domain.PromoApplyAll}, Active: true, Label: "Hemat 10%"},
			"BIG":   {Code: "BIG", Type: domain.PromoTypeNominal, Value: 5000, AppliesTo: []string{domain.PromoApplyAll}, MinAmount: 50000, Active: true},
		},
	}

	all := append([]Option{
		WithClock(clock),
		WithPayTTL(testPayTTL),
		WithEventPublisher(f.publisher),
	}, opts...)

	m, err := NewManager(Deps{
		Dedupe:    memory.NewDedupeRepositoryWithClock(clock.Now),
		Ledger:    f.ledger,
		Gateway:   f.gateway,
		Messenger: f.messenger,
		Catalog:   cat,
	}, all...)
	require.NoError(t, err)
	f.manager = m

	t.Cleanup(func() {
		m.Shutdown()
		m.Wait()
	})
	return f
}

func (f *fixture) create(t *testing.T, buyer string, qty int) domain.Order {
	t.Helper()
	res, err := f.manager.Create(context.Background(), PurchaseRequest{
		BuyerID:     buyer,
		ProductCode: "spo3b",
		Qty:         qty,
	})
	require.NoError(t, err)
	return res.Order
}

func (f *fixture) settlement(order domain.Order) domain.PaymentNotification {
	return domain.PaymentNotification{
		OrderID:           order.ID,
		TransactionStatus: domain.TransactionSettlement,
		StatusCode:        "200",
		PaymentType:       "qris",
		TransactionID:     "trx-" + order.ID,
	}
}
