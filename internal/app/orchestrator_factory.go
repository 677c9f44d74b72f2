package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

// newOrderManager создаёт менеджер заказов; события публикуются через очередь,
// только если есть kafka producer.
func newOrderManager(cfg Config, d *Dependencies, logger *log.Entry) (*saga.Manager, error) {
	opts := []saga.Option{
		saga.WithPayTTL(cfg.PayTTL),
		saga.WithDedupeTTL(cfg.SettleDedupeTTL),
		saga.WithMetrics(d.Metrics),
		saga.WithQRBreaker(saga.NewCircuitBreaker(qrBreakerFailures, qrBreakerReset, logger.WithField("layer", "qr-breaker"))),
		saga.WithLogger(logger.WithField("layer", "saga")),
	}
	if d.events != nil {
		opts = append(opts, saga.WithEventPublisher(d.events))
	}

	return saga.NewManager(saga.Deps{
		Dedupe:    d.Dedupe,
		Timeline:  d.Timeline,
		Ledger:    d.Ledger,
		Gateway:   d.Gateway,
		Messenger: d.Messenger,
		Catalog:   d.Catalog,
	}, opts...)
}
