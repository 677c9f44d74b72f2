// Package metrics содержит prometheus-метрики жизненного цикла заказов и каталога.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказа.
type OrderMetrics struct {
	// Счётчики переходов
	ordersCreated  prometheus.Counter
	ordersSettled  prometheus.Counter
	ordersReleased *prometheus.CounterVec

	// Сбои и особые ветки
	duplicateNotifications prometheus.Counter
	unknownNotifications   prometheus.Counter
	finalizeFailures       prometheus.Counter
	chargeFallbacks        prometheus.Counter
	releaseFailures        prometheus.Counter

	// Гистограммы времени выполнения
	orderLifetime prometheus.Histogram
	stepDuration  *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	catalogReloads *prometheus.CounterVec
	webhooks       *prometheus.CounterVec

	// Очередь событий для брокера
	outboxPublishes *prometheus.CounterVec
	outboxPending   prometheus.Gauge
	outboxOldestAge prometheus.Gauge

	// Gauge для заказов, ожидающих оплату
	pendingOrders prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_orders_created_total",
			Help: "Total number of orders that reached pending state",
		}),
		ordersSettled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_orders_settled_total",
			Help: "Total number of orders settled and delivered",
		}),
		ordersReleased: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_orders_released_total",
			Help: "Total number of orders released, by reason",
		}, []string{"reason"}),
		duplicateNotifications: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_duplicate_notifications_total",
			Help: "Total number of payment notifications ignored as duplicates",
		}),
		unknownNotifications: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_unknown_notifications_total",
			Help: "Total number of payment notifications for orders no longer pending",
		}),
		finalizeFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_finalize_failures_total",
			Help: "Total number of failed ledger finalize calls",
		}),
		chargeFallbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_charge_fallback_total",
			Help: "Total number of orders charged via invoice after QR charge failed",
		}),
		releaseFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_release_failures_total",
			Help: "Total number of failed ledger release calls",
		}),
		orderLifetime: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storebot_order_lifetime_seconds",
			Help:    "Time from order creation to settlement or release",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storebot_step_duration_seconds",
			Help:    "Duration of individual lifecycle steps in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10, 30},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		catalogReloads: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_catalog_reloads_total",
			Help: "Total number of catalog reloads, by result",
		}, []string{"result"}),
		webhooks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_payment_webhooks_total",
			Help: "Total number of payment webhooks, by transaction status and outcome",
		}, []string{"status", "outcome"}),
		outboxPublishes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_outbox_publish_attempts_total",
			Help: "Total number of order event publish attempts, by result",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storebot_outbox_pending_records",
			Help: "Number of order events waiting to be published",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storebot_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest unpublished order event",
		}),
		pendingOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storebot_pending_orders",
			Help: "Number of orders waiting for payment",
		}),
	}
}

// RecordOrderCreated учитывает новый ожидающий заказ.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
	m.pendingOrders.Inc()
}

// RecordOrderSettled учитывает оплаченный заказ.
func (m *OrderMetrics) RecordOrderSettled(lifetime time.Duration) {
	m.ordersSettled.Inc()
	m.pendingOrders.Dec()
	m.orderLifetime.Observe(lifetime.Seconds())
}

// RecordOrderReleased учитывает снятый заказ.
func (m *OrderMetrics) RecordOrderReleased(reason string, lifetime time.Duration) {
	m.ordersReleased.WithLabelValues(reason).Inc()
	m.pendingOrders.Dec()
	m.orderLifetime.Observe(lifetime.Seconds())
}

// RecordDuplicateNotification учитывает повторный вебхук.
func (m *OrderMetrics) RecordDuplicateNotification() {
	m.duplicateNotifications.Inc()
}

// RecordUnknownNotification учитывает вебхук для заказа, которого уже нет.
func (m *OrderMetrics) RecordUnknownNotification() {
	m.unknownNotifications.Inc()
}

// RecordFinalizeFailure учитывает отказ finalize.
func (m *OrderMetrics) RecordFinalizeFailure() {
	m.finalizeFailures.Inc()
}

// RecordChargeFallback учитывает переход на redirect-счёт.
func (m *OrderMetrics) RecordChargeFallback() {
	m.chargeFallbacks.Inc()
}

// RecordReleaseFailure учитывает неудачный release.
func (m *OrderMetrics) RecordReleaseFailure() {
	m.releaseFailures.Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordCatalogReload учитывает перезагрузку каталога ("ok" или "error").
func (m *OrderMetrics) RecordCatalogReload(result string) {
	m.catalogReloads.WithLabelValues(result).Inc()
}

// RecordWebhook учитывает входящий вебхук шлюза.
func (m *OrderMetrics) RecordWebhook(status, outcome string) {
	m.webhooks.WithLabelValues(status, outcome).Inc()
}

// RecordOutboxPublish учитывает попытку публикации события ("sent", "retry_error", "failed", "dlq_failed").
func (m *OrderMetrics) RecordOutboxPublish(result string) {
	m.outboxPublishes.WithLabelValues(result).Inc()
}

// SetOutboxBacklog выставляет размер очереди событий и возраст самой старой записи.
func (m *OrderMetrics) SetOutboxBacklog(pending int, oldest time.Duration) {
	m.outboxPending.Set(float64(pending))
	if oldest < 0 {
		oldest = 0
	}
	m.outboxOldestAge.Set(oldest.Seconds())
}
