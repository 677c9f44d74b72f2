package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/storage/postgres"
)

// Драйверы журнала событий заказов.
const (
	TimelineDriverMemory   = "memory"
	TimelineDriverPostgres = "postgres"
)

// PaymentProviderMidtrans: единственный поддерживаемый платёжный шлюз.
const PaymentProviderMidtrans = "midtrans"

// Имена переменных окружения.
const (
	envPort                 = "PORT"
	envMetricsAddr          = "METRICS_ADDR"
	envGRPCAddr             = "GRPC_ADDR"
	envSheetURL             = "SHEET_URL"
	envSheetURLPromo        = "SHEET_URL_PROMO"
	envCatalogTTL           = "CATALOG_TTL"
	envAdmins               = "ADMINS"
	envAdminContact         = "ADMIN_CONTACT"
	envAdminSecret          = "ADMIN_WEBHOOK_SECRET"
	envPublicBaseURL        = "PUBLIC_BASE_URL"
	envLedgerURL            = "LEDGER_URL"
	envLedgerURLLegacy      = "GAS_WEBHOOK_URL"
	envLedgerSecret         = "LEDGER_SECRET"
	envLedgerSecretLegacy   = "GAS_SECRET"
	envPaymentProvider      = "PAYMENT_PROVIDER"
	envMidtransServerKey    = "MIDTRANS_SERVER_KEY"
	envMidtransProduction   = "MIDTRANS_IS_PRODUCTION"
	envShowProductImage     = "SHOW_PRODUCT_IMAGE"
	envQuietMode            = "QUIET_MODE"
	envCooldownSec          = "COOLDOWN_SEC"
	envPayTTLMillis         = "PAY_TTL_MS"
	envSettleDedupeTTL      = "SETTLE_DEDUPE_TTL"
	envDedupeSweepInterval  = "DEDUPE_SWEEP_INTERVAL"
	envHTTPTimeout          = "HTTP_TIMEOUT"
	envChatGatewayURL       = "CHAT_GATEWAY_URL"
	envChatGatewayToken     = "CHAT_GATEWAY_TOKEN"
	envKafkaBrokers         = "KAFKA_BROKERS"
	envKafkaOrderEventTopic = "KAFKA_ORDER_EVENTS_TOPIC"
	envOutboxPollInterval   = "OUTBOX_POLL_INTERVAL"
	envOutboxMaxAttempts    = "OUTBOX_MAX_ATTEMPTS"
	envTimelineDriver       = "TIMELINE_DRIVER"
	envDatabaseURL          = "DATABASE_URL"
	envDBMaxOpenConns       = "DB_MAX_OPEN_CONNS"
	envDBMaxIdleConns       = "DB_MAX_IDLE_CONNS"
	envDBConnMaxLifetime    = "DB_CONN_MAX_LIFETIME"
	envDBConnMaxIdleTime    = "DB_CONN_MAX_IDLE_TIME"
)

// EnvLookup читает переменную окружения; второй результат сообщает, задана ли она.
type EnvLookup func(key string) (string, bool)

// Config описывает настройки запуска бота.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	// При пустом GRPCAddr gRPC health-сервер не запускается.
	GRPCAddr string

	SheetURL      string
	SheetURLPromo string
	CatalogTTL    time.Duration

	Admins        []string
	AdminContact  string
	AdminSecret   string
	PublicBaseURL string

	LedgerURL    string
	LedgerSecret string

	PaymentProvider    string
	MidtransServerKey  string
	MidtransProduction bool

	ShowProductImage bool
	QuietMode        bool
	Cooldown         time.Duration

	PayTTL              time.Duration
	SettleDedupeTTL     time.Duration
	DedupeSweepInterval time.Duration
	HTTPTimeout         time.Duration

	ChatGatewayURL   string
	ChatGatewayToken string

	KafkaBrokers       []string
	KafkaOrderTopic    string
	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int

	TimelineDriver string
	DatabaseURL    string
	DBPool         postgres.PoolConfig
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":3000",
		MetricsAddr:         ":9090",
		CatalogTTL:          5 * time.Minute,
		PaymentProvider:     PaymentProviderMidtrans,
		QuietMode:           true,
		Cooldown:            2 * time.Second,
		PayTTL:              20 * time.Minute,
		SettleDedupeTTL:     10 * time.Minute,
		DedupeSweepInterval: time.Minute,
		HTTPTimeout:         30 * time.Second,
		KafkaOrderTopic:     "storebot.order.events",
		OutboxPollInterval:  time.Second,
		OutboxMaxAttempts:   3,
		TimelineDriver:      TimelineDriverMemory,
		DBPool:              postgres.DefaultPoolConfig(),
	}
}

// ConfigFromEnv собирает Config из окружения. Некорректные значения не валят
// запуск: остаётся значение по умолчанию, а в warnings попадает описание.
func ConfigFromEnv(lookup EnvLookup) (Config, []string) {
	cfg := DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v, using default", key, value, err))
	}

	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(dst *time.Duration, key string, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	integer := func(dst *int, key string, valid func(int) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	positive := func(d time.Duration) bool { return d > 0 }
	positiveInt := func(n int) bool { return n > 0 }

	if v, ok := lookup(envPort); ok && strings.TrimSpace(v) != "" {
		if _, err := parseInt(v, func(n int) bool { return n > 0 && n < 65536 }, "must be a TCP port"); err != nil {
			warn(envPort, v, err)
		} else {
			cfg.HTTPAddr = ":" + strings.TrimSpace(v)
		}
	}
	str(&cfg.MetricsAddr, envMetricsAddr)
	str(&cfg.GRPCAddr, envGRPCAddr)

	str(&cfg.SheetURL, envSheetURL)
	str(&cfg.SheetURLPromo, envSheetURLPromo)
	duration(&cfg.CatalogTTL, envCatalogTTL, positive, "must be > 0")

	if v, ok := lookup(envAdmins); ok {
		cfg.Admins = splitList(v)
	}
	str(&cfg.AdminContact, envAdminContact)
	str(&cfg.AdminSecret, envAdminSecret)
	str(&cfg.PublicBaseURL, envPublicBaseURL)
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	str(&cfg.LedgerURL, envLedgerURL, envLedgerURLLegacy)
	str(&cfg.LedgerSecret, envLedgerSecret, envLedgerSecretLegacy)

	str(&cfg.PaymentProvider, envPaymentProvider)
	cfg.PaymentProvider = strings.ToLower(cfg.PaymentProvider)
	str(&cfg.MidtransServerKey, envMidtransServerKey)
	boolean(&cfg.MidtransProduction, envMidtransProduction)

	boolean(&cfg.ShowProductImage, envShowProductImage)
	boolean(&cfg.QuietMode, envQuietMode)

	cooldownSec := -1
	integer(&cooldownSec, envCooldownSec, func(n int) bool { return n >= 0 }, "must be >= 0")
	if cooldownSec >= 0 {
		cfg.Cooldown = time.Duration(cooldownSec) * time.Second
	}
	payTTLMillis := 0
	integer(&payTTLMillis, envPayTTLMillis, positiveInt, "must be > 0")
	if payTTLMillis > 0 {
		cfg.PayTTL = time.Duration(payTTLMillis) * time.Millisecond
	}
	duration(&cfg.SettleDedupeTTL, envSettleDedupeTTL, positive, "must be > 0")
	duration(&cfg.DedupeSweepInterval, envDedupeSweepInterval, positive, "must be > 0")
	duration(&cfg.HTTPTimeout, envHTTPTimeout, positive, "must be > 0")

	str(&cfg.ChatGatewayURL, envChatGatewayURL)
	str(&cfg.ChatGatewayToken, envChatGatewayToken)

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	str(&cfg.KafkaOrderTopic, envKafkaOrderEventTopic)
	duration(&cfg.OutboxPollInterval, envOutboxPollInterval, positive, "must be > 0")
	integer(&cfg.OutboxMaxAttempts, envOutboxMaxAttempts, positiveInt, "must be > 0")

	str(&cfg.TimelineDriver, envTimelineDriver)
	cfg.TimelineDriver = strings.ToLower(cfg.TimelineDriver)
	str(&cfg.DatabaseURL, envDatabaseURL)
	integer(&cfg.DBPool.MaxOpenConns, envDBMaxOpenConns, positiveInt, "must be > 0")
	integer(&cfg.DBPool.MaxIdleConns, envDBMaxIdleConns, positiveInt, "must be > 0")
	duration(&cfg.DBPool.ConnMaxLifetime, envDBConnMaxLifetime, positive, "must be > 0")
	duration(&cfg.DBPool.ConnMaxIdleTime, envDBConnMaxIdleTime, positive, "must be > 0")

	return cfg, warnings
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.PaymentProvider != PaymentProviderMidtrans {
		errs = append(errs, fmt.Errorf("unsupported payment provider %q", c.PaymentProvider))
	}
	if c.CatalogTTL <= 0 {
		errs = append(errs, errors.New("catalog ttl must be > 0"))
	}
	if c.PayTTL <= 0 {
		errs = append(errs, errors.New("pay ttl must be > 0"))
	}
	if c.SettleDedupeTTL <= 0 {
		errs = append(errs, errors.New("settle dedupe ttl must be > 0"))
	}
	if c.DedupeSweepInterval <= 0 {
		errs = append(errs, errors.New("dedupe sweep interval must be > 0"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http timeout must be > 0"))
	}
	if len(c.KafkaBrokers) > 0 {
		if c.KafkaOrderTopic == "" {
			errs = append(errs, errors.New("kafka order topic is required when brokers are set"))
		}
		if c.OutboxPollInterval <= 0 || c.OutboxMaxAttempts <= 0 {
			errs = append(errs, errors.New("outbox poll interval and max attempts must be > 0"))
		}
	}
	if c.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown must be >= 0"))
	}
	switch c.TimelineDriver {
	case TimelineDriverMemory:
	case TimelineDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres timeline driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported timeline driver %q", c.TimelineDriver))
	}
	return errors.Join(errs...)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, errors.New("not a boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

// splitList разбирает список через запятую, пустые элементы отбрасываются.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
