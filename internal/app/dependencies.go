package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/chat"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/httpapi"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/service/dedupe"
	"github.com/vladislavdragonenkov/storebot/internal/service/inventory"
	"github.com/vladislavdragonenkov/storebot/internal/service/outbox"
	"github.com/vladislavdragonenkov/storebot/internal/service/payment"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
	"github.com/vladislavdragonenkov/storebot/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storebot/internal/version"
)

const (
	qrBreakerFailures = 3
	qrBreakerReset    = 30 * time.Second
)

// Dependencies содержит собранные компоненты бота.
type Dependencies struct {
	Catalog   *catalog.Cache
	Ledger    domain.StockLedger
	Gateway   *payment.Midtrans
	Messenger domain.Messenger
	Dedupe    domain.DedupeRepository
	Timeline  domain.TimelineRepository
	Manager   *saga.Manager
	Router    *bot.Router
	HTTP      *httpapi.Server
	Cleanup   *dedupe.CleanupWorker
	Metrics   *metrics.OrderMetrics
	// Outbox nil, если брокеры не заданы.
	Outbox *outbox.Worker

	producer *kafka.Producer
	events   *outbox.Queue
	store    *postgres.Store
	logger   *log.Entry
}

// NewDependencies собирает все компоненты по конфигурации. registerer может быть nil,
// тогда метрики регистрируются в prometheus.DefaultRegisterer.
func NewDependencies(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Dependencies{
		Metrics: metrics.NewOrderMetricsWithRegisterer(registerer),
		Dedupe:  memory.NewDedupeRepository(),
		logger:  logger,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	d.Catalog = newCatalog(cfg, httpClient, logger)
	if err := d.Catalog.Refresh(ctx, true); err != nil {
		// Бот стартует и без каталога; следующее обращение попробует снова.
		logger.WithError(err).Warn("initial catalog load failed")
	}

	d.Ledger = newLedger(cfg, httpClient, logger)
	d.Gateway = payment.NewMidtrans(payment.Config{
		ServerKey:  cfg.MidtransServerKey,
		Production: cfg.MidtransProduction,
		FinishURL:  finishURL(cfg.PublicBaseURL),
		HTTPClient: httpClient,
		Logger:     logger.WithField("layer", "midtrans"),
	})
	d.Messenger = newMessenger(cfg, httpClient, logger)

	timeline, store, err := initTimeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Timeline, d.store = timeline, store

	d.producer = initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
	if d.producer != nil {
		d.events, d.Outbox = newOutbox(cfg, d.producer, d.Metrics, logger)
	}

	d.Manager, err = newOrderManager(cfg, d, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	routerOpts := []bot.Option{
		bot.WithQuiet(cfg.QuietMode),
		bot.WithCooldown(cfg.Cooldown),
		bot.WithAdmins(cfg.Admins),
		bot.WithAdminContact(cfg.AdminContact),
		bot.WithShowImage(cfg.ShowProductImage),
		bot.WithStatusLookup(d.Gateway),
		bot.WithMetrics(d.Metrics),
		bot.WithLogger(logger.WithField("layer", "bot")),
	}
	if reactor, ok := d.Messenger.(chat.Reactor); ok {
		routerOpts = append(routerOpts, bot.WithReactor(reactor))
	}
	d.Router = bot.NewRouter(d.Catalog, d.Manager, d.Messenger, routerOpts...)

	d.HTTP = httpapi.NewServer(d.Manager, d.Catalog, d.Gateway, d.Messenger,
		httpapi.WithAdminSecret(cfg.AdminSecret),
		httpapi.WithAdmins(cfg.Admins),
		httpapi.WithChatHandler(d.Router),
		httpapi.WithChatToken(cfg.ChatGatewayToken),
		httpapi.WithVersion(version.GetVersion()),
		httpapi.WithMetrics(d.Metrics),
		httpapi.WithBaseContext(ctx),
		httpapi.WithLogger(logger.WithField("layer", "http")),
	)

	d.Cleanup = dedupe.NewCleanupWorker(d.Dedupe,
		dedupe.WithInterval(cfg.DedupeSweepInterval),
		dedupe.WithLogger(logger.WithField("layer", "dedupe-cleanup")),
	)
	return d, nil
}

// Close останавливает таймеры заказов и освобождает внешние подключения.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Manager != nil {
		d.Manager.Shutdown()
		d.Manager.Wait()
	}
	closeKafka(d.producer, d.logger)
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

func newCatalog(cfg Config, client *http.Client, logger *log.Entry) *catalog.Cache {
	opts := []catalog.Option{
		catalog.WithTTL(cfg.CatalogTTL),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
	}
	if cfg.SheetURLPromo != "" {
		opts = append(opts, catalog.WithPromoSource(catalog.NewHTTPSource(cfg.SheetURLPromo, client)))
	}
	if cfg.SheetURL == "" {
		logger.Warn("SHEET_URL is not set, serving the sample catalog")
		return catalog.NewCache(catalog.SampleProducts(cfg.AdminContact), opts...)
	}
	return catalog.NewCache(catalog.NewHTTPSource(cfg.SheetURL, client), opts...)
}

func newLedger(cfg Config, client *http.Client, logger *log.Entry) domain.StockLedger {
	if cfg.LedgerURL == "" {
		logger.Warn("LEDGER_URL is not set, stock ledger calls always succeed")
		return inventory.NoopService{}
	}
	return inventory.NewClient(cfg.LedgerURL, cfg.LedgerSecret,
		inventory.WithHTTPClient(client),
		inventory.WithLogger(logger.WithField("layer", "ledger")),
	)
}

func newMessenger(cfg Config, client *http.Client, logger *log.Entry) domain.Messenger {
	if cfg.ChatGatewayURL == "" {
		logger.Warn("CHAT_GATEWAY_URL is not set, outgoing chat messages are only logged")
		return chat.NewLogMessenger(logger.WithField("layer", "chat"))
	}
	return chat.NewGateway(cfg.ChatGatewayURL, cfg.ChatGatewayToken,
		chat.WithHTTPClient(client),
		chat.WithLogger(logger.WithField("layer", "chat")),
	)
}

func finishURL(base string) string {
	if base == "" {
		return ""
	}
	return base + "/pay/finish"
}

// initTimeline выбирает хранилище журнала событий. Для postgres применяются миграции.
func initTimeline(ctx context.Context, cfg Config, logger *log.Entry) (domain.TimelineRepository, *postgres.Store, error) {
	switch cfg.TimelineDriver {
	case "", TimelineDriverMemory:
		return memory.NewTimelineRepository(), nil, nil
	case TimelineDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("timeline driver %q requires DATABASE_URL", cfg.TimelineDriver)
		}
		store, err := postgres.OpenWithPool(ctx, cfg.DatabaseURL, cfg.DBPool)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres timeline: %w", err)
		}
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("migrate postgres timeline: %w", err)
		}
		logger.Info("order timeline stored in postgres")
		return postgres.NewTimelineRepository(store), store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported timeline driver %q", cfg.TimelineDriver)
	}
}
