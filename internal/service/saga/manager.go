// Package saga ведёт жизненный цикл заказа (резерв, платёж, расчёт по вебхуку, снятие резерва).
package saga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/render"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

const (
	// DefaultPayTTL: сколько заказ ждёт оплату.
	DefaultPayTTL = 20 * time.Minute
	// DefaultDedupeTTL: сколько хранится отметка о расчёте.
	DefaultDedupeTTL = 10 * time.Minute
)

// ReasonTimeout: причина снятия заказа по таймеру.
const ReasonTimeout = "timeout"

// reasonGateway: заказ снят, потому что не удалось создать ни один платёж.
const reasonGateway = "gateway_failed"

// SettleOutcome: результат обработки успешного вебхука.
type SettleOutcome int

const (
	// OutcomeSettled: заказ оплачен и выдан.
	OutcomeSettled SettleOutcome = iota
	// OutcomeDuplicate: расчёт по заказу уже был или идёт.
	OutcomeDuplicate
	// OutcomeUnknown: заказа нет в таблице (поздний вебхук).
	OutcomeUnknown
	// OutcomeFailed: склад не финализировал, заказ остаётся ожидающим.
	OutcomeFailed
)

func (o SettleOutcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "failed"
	}
}

// PurchaseRequest: запрос покупателя на оформление заказа.
type PurchaseRequest struct {
	BuyerID     string
	BuyerPhone  string
	ProductCode string
	Qty         int
	PromoCode   string
}

// CreateResult: созданный заказ и платёж по нему.
type CreateResult struct {
	Order  domain.Order
	Charge domain.Charge
}

// EventPublisher публикует события заказов во внешнюю шину.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *kafka.OrderEvent) error
}

// Deps: зависимости менеджера. Orders, Dedupe и Timeline по умолчанию in-memory.
type Deps struct {
	Orders    domain.OrderTable
	Dedupe    domain.DedupeRepository
	Timeline  domain.TimelineRepository
	Ledger    domain.StockLedger
	Gateway   domain.PaymentGateway
	Messenger domain.Messenger
	Catalog   domain.CatalogReader
}

// entry: служебное состояние ожидающего заказа.
type entry struct {
	timer Timer
	// settling выставляется на время finalize.
	settling bool
	// deferred: причина снятия, отложенного до завершения расчёта.
	deferred string
}

// Manager владеет таблицей ожидающих заказов, dedupe-отметками и таймерами.
type Manager struct {
	orders    domain.OrderTable
	dedupe    domain.DedupeRepository
	timeline  domain.TimelineRepository
	ledger    domain.StockLedger
	gateway   domain.PaymentGateway
	messenger domain.Messenger
	catalog   domain.CatalogReader

	clock     Clock
	payTTL    time.Duration
	dedupeTTL time.Duration
	metrics   *metrics.OrderMetrics
	publisher EventPublisher
	qrBreaker *CircuitBreaker
	logger    *log.Entry

	// mu защищает entries и атомарность пар "проверка dedupe + take".
	mu      sync.Mutex
	entries map[string]*entry
	// timers считает взведённые таймеры и выполняющиеся колбэки.
	timers sync.WaitGroup
}

// Option настраивает Manager.
type Option func(*Manager)

// WithPayTTL задаёт время ожидания оплаты.
func WithPayTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.payTTL = ttl
		}
	}
}

// WithDedupeTTL задаёт срок хранения dedupe-отметок.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.dedupeTTL = ttl
		}
	}
}

// WithClock подменяет часы.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(om *metrics.OrderMetrics) Option {
	return func(m *Manager) {
		m.metrics = om
	}
}

// WithEventPublisher включает публикацию событий заказов.
func WithEventPublisher(p EventPublisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithQRBreaker оборачивает создание QR-платежа в circuit breaker.
func WithQRBreaker(cb *CircuitBreaker) Option {
	return func(m *Manager) {
		m.qrBreaker = cb
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager создаёт менеджер заказов.
func NewManager(deps Deps, opts ...Option) (*Manager, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("saga: stock ledger is required")
	case deps.Gateway == nil:
		return nil, errors.New("saga: payment gateway is required")
	case deps.Messenger == nil:
		return nil, errors.New("saga: messenger is required")
	case deps.Catalog == nil:
		return nil, errors.New("saga: catalog is required")
	}
	if deps.Orders == nil {
		deps.Orders = memory.NewOrderTable()
	}
	if deps.Dedupe == nil {
		deps.Dedupe = memory.NewDedupeRepository()
	}
	if deps.Timeline == nil {
		deps.Timeline = memory.NewTimelineRepository()
	}

	m := &Manager{
		orders:    deps.Orders,
		dedupe:    deps.Dedupe,
		timeline:  deps.Timeline,
		ledger:    deps.Ledger,
		gateway:   deps.Gateway,
		messenger: deps.Messenger,
		catalog:   deps.Catalog,
		clock:     realClock{},
		payTTL:    DefaultPayTTL,
		dedupeTTL: DefaultDedupeTTL,
		logger:    log.WithField("component", "saga"),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create оформляет заказ: промокод, резерв, таблица с таймером, затем платёж.
// При отказе склада заказ не сохраняется и платёж не создаётся.
func (m *Manager) Create(ctx context.Context, req PurchaseRequest) (CreateResult, error) {
	product, ok := m.catalog.LookupByCode(req.ProductCode)
	if !ok {
		return CreateResult{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductCode)
	}
	if req.Qty <= 0 {
		return CreateResult{}, domain.ErrQtyInvalid
	}
	if product.Price > 0 && int64(req.Qty) > math.MaxInt64/product.Price {
		return CreateResult{}, fmt.Errorf("%w: %d x %d overflows the total", domain.ErrQtyInvalid, req.Qty, product.Price)
	}

	now := m.clock.Now()
	order := domain.Order{
		ID:          newOrderID(now),
		BuyerID:     req.BuyerID,
		BuyerPhone:  req.BuyerPhone,
		ProductCode: product.Code,
		ProductName: product.Name,
		Qty:         req.Qty,
		UnitPrice:   product.Price,
		Subtotal:    product.Price * int64(req.Qty),
		Status:      domain.OrderStatusReserving,
		CreatedAt:   now,
	}
	m.applyPromo(&order, req.PromoCode, now)
	order.Total = order.Subtotal - order.Discount
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return CreateResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, errors.Join(errs...))
	}

	logger := m.logger.WithFields(log.Fields{"order_id": order.ID, "buyer": order.BuyerID})

	start := time.Now()
	_, err := m.ledger.Reserve(ctx, domain.ReserveRequest{
		OrderID:     order.ID,
		ProductCode: order.ProductCode,
		Qty:         order.Qty,
		BuyerID:     order.BuyerID,
		Total:       order.Total,
	})
	m.observeStep(domain.SagaStepReserve, start)
	if err != nil {
		logger.WithError(err).Warn("reserve failed")
		return CreateResult{}, err
	}

	order.Status = domain.OrderStatusPending
	order.ExpiresAt = now.Add(m.payTTL)
	if err := m.arm(order); err != nil {
		logger.WithError(err).Error("store pending order failed")
		m.releaseLedger(ctx, order.ID)
		return CreateResult{}, err
	}
	if m.metrics != nil {
		m.metrics.RecordOrderCreated()
	}
	m.emitEvent(order.ID, domain.TimelineOrderCreated, order.PromoNote)
	m.publish(ctx, kafka.EventTypeOrderCreated, order, "")

	charge, err := m.charge(ctx, order, logger)
	if err != nil {
		m.abort(ctx, order.ID)
		return CreateResult{}, err
	}

	logger.WithFields(log.Fields{
		"total":    order.Total,
		"fallback": charge.Fallback,
	}).Info("order created")
	return CreateResult{Order: order, Charge: charge}, nil
}

func (m *Manager) applyPromo(order *domain.Order, code string, now time.Time) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return
	}
	order.PromoCode = code

	if !m.catalog.PromosEnabled() {
		order.PromoNote = domain.PromoNoteDisabled
		return
	}
	promo, ok := m.catalog.Promo(code)
	if !ok {
		order.PromoNote = "promo invalid: " + string(domain.PromoNotFound)
		return
	}
	reason := promo.Check(domain.PromoCandidate{
		ProductCode: catalog.NormalizeCode(order.ProductCode),
		Qty:         order.Qty,
		Subtotal:    order.Subtotal,
	}, now)
	if reason != domain.PromoOK {
		order.PromoNote = "promo invalid: " + string(reason)
		return
	}
	order.Discount = promo.Discount(order.Subtotal)
	order.PromoLabel = promo.Label
	if order.PromoLabel == "" {
		order.PromoLabel = promo.Code
	}
}

// charge пробует QR, затем redirect-счёт.
func (m *Manager) charge(ctx context.Context, order domain.Order, logger *log.Entry) (domain.Charge, error) {
	var charge domain.Charge
	createQR := func() error {
		var err error
		charge, err = m.gateway.CreateQRCharge(ctx, order.ID, order.Total)
		return err
	}

	start := time.Now()
	var qrErr error
	if m.qrBreaker != nil {
		qrErr = m.qrBreaker.Execute(string(domain.SagaStepCharge), createQR)
	} else {
		qrErr = createQR()
	}
	m.observeStep(domain.SagaStepCharge, start)
	if qrErr == nil {
		m.emitEvent(order.ID, domain.TimelineChargeCreated, "qris")
		return charge, nil
	}
	logger.WithError(qrErr).Warn("qr charge failed, falling back to invoice")

	start = time.Now()
	charge, invErr := m.gateway.CreateInvoice(ctx, domain.InvoiceRequest{
		OrderID:      order.ID,
		Amount:       order.Total,
		BuyerPhone:   order.BuyerPhone,
		ProductLabel: fmt.Sprintf("%s x %d", order.ProductName, order.Qty),
	})
	m.observeStep(domain.SagaStepInvoice, start)
	if invErr != nil {
		logger.WithError(invErr).Error("invoice fallback failed")
		return domain.Charge{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, errors.Join(qrErr, invErr))
	}

	charge.Fallback = true
	if m.metrics != nil {
		m.metrics.RecordChargeFallback()
	}
	m.emitEvent(order.ID, domain.TimelineChargeFallback, qrErr.Error())
	return charge, nil
}

// arm кладёт заказ в таблицу и взводит таймер оплаты.
func (m *Manager) arm(order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.orders.Insert(order); err != nil {
		return err
	}
	id := order.ID
	m.timers.Add(1)
	m.entries[id] = &entry{timer: m.clock.AfterFunc(m.payTTL, func() { m.onTimeout(id) })}
	return nil
}

// abort снимает только что созданный заказ, если платёж создать не удалось.
func (m *Manager) abort(ctx context.Context, orderID string) {
	order, ok := m.take(orderID)
	if !ok {
		return
	}
	m.releaseLedger(ctx, orderID)
	m.finishRelease(ctx, order, reasonGateway)
}

// Settle обрабатывает успешную оплату. Отметка dedupe ставится до finalize и
// снимается, если склад не ответил успехом, чтобы шлюз мог повторить вебхук.
func (m *Manager) Settle(ctx context.Context, n domain.PaymentNotification) (SettleOutcome, error) {
	orderID := n.OrderID
	logger := m.logger.WithFields(log.Fields{"order_id": orderID, "status": n.TransactionStatus})
	now := m.clock.Now()

	m.mu.Lock()
	if m.settling(orderID) {
		m.mu.Unlock()
		logger.Info("duplicate settlement notification ignored")
		if m.metrics != nil {
			m.metrics.RecordDuplicateNotification()
		}
		m.emitEvent(orderID, domain.TimelineDuplicateNotice, string(n.TransactionStatus))
		return OutcomeDuplicate, nil
	}
	order, err := m.orders.Get(orderID)
	if err != nil {
		m.mu.Unlock()
		logger.Info("settlement for unknown or finished order acknowledged")
		if m.metrics != nil {
			m.metrics.RecordUnknownNotification()
		}
		return OutcomeUnknown, nil
	}
	if _, err := m.dedupe.Add(orderID, now.Add(m.dedupeTTL)); err != nil {
		m.mu.Unlock()
		if domain.IsDuplicate(err) {
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, fmt.Errorf("mark order settling: %w", err)
	}
	if e, ok := m.entries[orderID]; ok {
		e.settling = true
	}
	m.mu.Unlock()

	start := time.Now()
	res, err := m.ledger.Finalize(ctx, orderID, order.Total)
	m.observeStep(domain.SagaStepFinalize, start)
	if err != nil {
		return OutcomeFailed, m.rollbackSettle(ctx, orderID, err, logger)
	}

	taken, ok := m.take(orderID)
	if ok {
		order = taken
	} else {
		logger.Warn("order left the table while finalize was in flight")
	}
	order.Status = domain.OrderStatusSettled

	m.deliver(ctx, order, n, res)

	if m.metrics != nil {
		m.metrics.RecordOrderSettled(m.clock.Now().Sub(order.CreatedAt))
	}
	m.emitEvent(orderID, domain.TimelineOrderSettled, n.PaymentType)
	m.publish(ctx, kafka.EventTypeOrderSettled, order, "")
	logger.WithField("items", len(res.Items)).Info("order settled")
	return OutcomeSettled, nil
}

// rollbackSettle снимает dedupe-отметку после отказа склада и выполняет
// отложенное снятие, если таймер или отмена сработали во время finalize.
func (m *Manager) rollbackSettle(ctx context.Context, orderID string, cause error, logger *log.Entry) error {
	logger.WithError(cause).Error("finalize failed, settlement rolled back")
	if m.metrics != nil {
		m.metrics.RecordFinalizeFailure()
	}
	m.emitEvent(orderID, domain.TimelineFinalizeFailed, cause.Error())

	m.mu.Lock()
	if err := m.dedupe.Delete(orderID); err != nil && !errors.Is(err, domain.ErrDedupeKeyNotFound) {
		logger.WithError(err).Warn("dedupe rollback failed")
	}
	var deferred string
	if e, ok := m.entries[orderID]; ok {
		deferred = e.deferred
		e.deferred = ""
		e.settling = false
	}
	m.mu.Unlock()

	if deferred != "" {
		m.Release(ctx, orderID, deferred)
	}
	return fmt.Errorf("finalize order %s: %w", orderID, cause)
}

func (m *Manager) deliver(ctx context.Context, order domain.Order, n domain.PaymentNotification, res domain.LedgerResult) {
	start := time.Now()
	defer m.observeStep(domain.SagaStepDeliver, start)

	messages := []string{
		render.SettlementSummary(order, n, m.clock.Now()),
		render.AccountDetails(res.Items),
	}
	if after := strings.TrimSpace(res.AfterMessage); after != "" {
		messages = append(messages, after)
	}
	for _, text := range messages {
		if err := m.messenger.Send(ctx, order.BuyerID, text); err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"buyer":    order.BuyerID,
			}).Error("delivery message failed")
		}
	}
}

// Release снимает ожидающий заказ: склад освобождает резерв, покупатель получает
// уведомление. Если по заказу идёт расчёт, снятие откладывается до его исхода.
// Возвращает true, если заказ был снят этим вызовом.
func (m *Manager) Release(ctx context.Context, orderID, reason string) bool {
	m.mu.Lock()
	if m.settling(orderID) {
		if e, ok := m.entries[orderID]; ok {
			e.deferred = reason
		}
		m.mu.Unlock()
		m.logger.WithFields(log.Fields{"order_id": orderID, "reason": reason}).Info("release deferred until settlement completes")
		return false
	}
	order, ok := m.takeLocked(orderID)
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.releaseLedger(ctx, orderID)
	m.finishRelease(ctx, order, reason)
	return true
}

func (m *Manager) finishRelease(ctx context.Context, order domain.Order, reason string) {
	order.Status = domain.OrderStatusReleased
	logger := m.logger.WithFields(log.Fields{"order_id": order.ID, "buyer": order.BuyerID, "reason": reason})

	var text string
	switch reason {
	case ReasonTimeout:
		text = render.TimeoutNotice
	case reasonGateway:
	default:
		text = render.Cancelled(domain.TransactionStatus(reason))
	}
	if text != "" {
		if err := m.messenger.Send(ctx, order.BuyerID, text); err != nil {
			logger.WithError(err).Warn("release notice failed")
		}
	}

	if m.metrics != nil {
		m.metrics.RecordOrderReleased(reason, m.clock.Now().Sub(order.CreatedAt))
	}
	m.emitEvent(order.ID, domain.TimelineOrderReleased, reason)
	m.publish(ctx, kafka.EventTypeOrderReleased, order, reason)
	logger.Info("order released")
}

func (m *Manager) releaseLedger(ctx context.Context, orderID string) {
	start := time.Now()
	err := m.ledger.Release(ctx, orderID)
	m.observeStep(domain.SagaStepRelease, start)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Error("ledger release failed")
		if m.metrics != nil {
			m.metrics.RecordReleaseFailure()
		}
	}
}

// onTimeout: колбэк таймера оплаты.
func (m *Manager) onTimeout(orderID string) {
	defer m.timers.Done()

	m.mu.Lock()
	e, ok := m.entries[orderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if m.settling(orderID) {
		e.deferred = ReasonTimeout
		m.mu.Unlock()
		m.logger.WithField("order_id", orderID).Info("payment timer fired during settlement")
		return
	}
	m.mu.Unlock()

	m.Release(context.Background(), orderID, ReasonTimeout)
}

// settling сообщает, что по заказу идёт расчёт или стоит действующая dedupe-отметка.
// Вызывается под mu.
func (m *Manager) settling(orderID string) bool {
	if e, ok := m.entries[orderID]; ok && e.settling {
		return true
	}
	rec, err := m.dedupe.Get(orderID)
	return err == nil && !rec.Expired(m.clock.Now())
}

func (m *Manager) take(orderID string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeLocked(orderID)
}

// takeLocked извлекает заказ из таблицы и останавливает его таймер. Вызывается под mu.
func (m *Manager) takeLocked(orderID string) (domain.Order, bool) {
	order, err := m.orders.Take(orderID)
	if err != nil {
		return domain.Order{}, false
	}
	if e, ok := m.entries[orderID]; ok {
		delete(m.entries, orderID)
		if e.timer.Stop() {
			m.timers.Done()
		}
	}
	return order, true
}

// Get возвращает ожидающий заказ.
func (m *Manager) Get(orderID string) (domain.Order, error) {
	return m.orders.Get(orderID)
}

// PendingByBuyer возвращает ожидающие заказы покупателя.
func (m *Manager) PendingByBuyer(buyerID string) ([]domain.Order, error) {
	return m.orders.ListByBuyer(buyerID)
}

// Pending: число ожидающих заказов.
func (m *Manager) Pending() int {
	return m.orders.Len()
}

// Timeline возвращает журнал событий заказа.
func (m *Manager) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	return m.timeline.List(orderID)
}

// Shutdown останавливает все таймеры. Заказы остаются в таблице.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.timer.Stop() {
			m.timers.Done()
		}
	}
}

// Wait ждёт завершения колбэков таймеров. Вызывается после Shutdown.
func (m *Manager) Wait() {
	m.timers.Wait()
}

func (m *Manager) emitEvent(orderID, eventType, reason string) {
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: m.clock.Now().UTC(),
	}
	if err := m.timeline.Append(event); err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("timeline append failed")
		return
	}
	if m.metrics != nil {
		m.metrics.RecordTimelineEvent()
	}
}

func (m *Manager) publish(ctx context.Context, eventType kafka.EventType, order domain.Order, reason string) {
	if m.publisher == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, order.ID, order.BuyerID, string(order.Status), order.Total, map[string]interface{}{
		"product_code": order.ProductCode,
		"qty":          order.Qty,
		"promo_code":   order.PromoCode,
	})
	event.Reason = reason
	if err := m.publisher.PublishOrderEvent(ctx, event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to publish order event")
	}
}

func (m *Manager) observeStep(step domain.SagaStep, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordStepDuration(string(step), time.Since(start))
	}
}

// newOrderID формирует идентификатор вида PBS-<unix-millis>-<6 hex>.
func newOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("PBS-%d-%s", now.UnixMilli(), suffix)
}
