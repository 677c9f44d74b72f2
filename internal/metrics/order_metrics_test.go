package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	if m.ordersCreated == nil || m.ordersReleased == nil || m.pendingOrders == nil {
		t.Fatal("collectors must be initialised")
	}

	// повторная регистрация возвращает те же коллекторы
	again := NewOrderMetricsWithRegisterer(reg)
	if again.ordersCreated != m.ordersCreated {
		t.Error("expected existing counter to be reused")
	}
	if again.ordersReleased != m.ordersReleased {
		t.Error("expected existing counter vec to be reused")
	}
}

func TestOrderLifecycleMetrics(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderCreated()
	m.RecordOrderCreated()
	m.RecordOrderCreated()
	if got := gaugeValue(t, m.pendingOrders); got != 3 {
		t.Fatalf("pending = %v, want 3", got)
	}

	m.RecordOrderSettled(time.Minute)
	m.RecordOrderReleased("timeout", 20*time.Minute)
	m.RecordOrderReleased("expire", time.Minute)

	if got := gaugeValue(t, m.pendingOrders); got != 0 {
		t.Errorf("pending = %v, want 0", got)
	}
	if got := counterValue(t, m.ordersSettled); got != 1 {
		t.Errorf("settled = %v, want 1", got)
	}
	if got := counterValue(t, m.ordersReleased.WithLabelValues("timeout")); got != 1 {
		t.Errorf("released{timeout} = %v, want 1", got)
	}
}

func TestFailureCounters(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordDuplicateNotification()
	m.RecordDuplicateNotification()
	m.RecordUnknownNotification()
	m.RecordFinalizeFailure()
	m.RecordChargeFallback()
	m.RecordReleaseFailure()
	m.RecordTimelineEvent()
	m.RecordCatalogReload("ok")
	m.RecordWebhook("settlement", "settled")
	m.RecordStepDuration("reserve", 10*time.Millisecond)

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"duplicates", m.duplicateNotifications, 2},
		{"unknown", m.unknownNotifications, 1},
		{"finalize", m.finalizeFailures, 1},
		{"fallback", m.chargeFallbacks, 1},
		{"release", m.releaseFailures, 1},
		{"timeline", m.timelineEvents, 1},
		{"catalog", m.catalogReloads.WithLabelValues("ok"), 1},
		{"webhook", m.webhooks.WithLabelValues("settlement", "settled"), 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOutboxPublish("sent")
	m.RecordOutboxPublish("sent")
	m.RecordOutboxPublish("retry_error")
	m.SetOutboxBacklog(3, 1500*time.Millisecond)

	if got := counterValue(t, m.outboxPublishes.WithLabelValues("sent")); got != 2 {
		t.Errorf("sent = %v, want 2", got)
	}
	if got := gaugeValue(t, m.outboxPending); got != 3 {
		t.Errorf("pending = %v, want 3", got)
	}
	if got := gaugeValue(t, m.outboxOldestAge); got != 1.5 {
		t.Errorf("oldest age = %v, want 1.5", got)
	}

	m.SetOutboxBacklog(0, -time.Second)
	if got := gaugeValue(t, m.outboxOldestAge); got != 0 {
		t.Errorf("negative age must clamp to 0, got %v", got)
	}
}
