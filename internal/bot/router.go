package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/chat"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/render"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

// Message: входящее сообщение чата.
type Message struct {
	From      string
	Text      string
	MessageID string
	IsAdmin   bool
}

// Catalog: то, что роутеру нужно от кэша каталога.
type Catalog interface {
	TokenIndex
	Refresh(ctx context.Context, force bool) error
	Reload(ctx context.Context, parts catalog.Part) error
	Stats() catalog.Stats
	LookupByCode(code string) (domain.Product, bool)
	Search(query string) []domain.Product
	Categories() []string
	Products() []domain.Product
}

// Orders: операции менеджера заказов, доступные из чата.
type Orders interface {
	Create(ctx context.Context, req saga.PurchaseRequest) (saga.CreateResult, error)
	Get(orderID string) (domain.Order, error)
	PendingByBuyer(buyerID string) ([]domain.Order, error)
}

// StatusLookup запрашивает статус транзакции у платёжного шлюза.
type StatusLookup interface {
	Status(ctx context.Context, orderID string) (domain.PaymentNotification, error)
}

// request: разобранная команда.
type request struct {
	Message
	name string
	args []string
	raw  string
}

type handlerFunc func(ctx context.Context, req request) (string, error)

// Router классифицирует входящие сообщения и отвечает на них.
type Router struct {
	catalog   Catalog
	orders    Orders
	status    StatusLookup
	messenger domain.Messenger
	reactor   chat.Reactor
	metrics   *metrics.OrderMetrics
	logger    *log.Entry

	quiet        bool
	showImage    bool
	adminContact string
	admins       map[string]struct{}
	cooldown     *cooldown

	commands map[string]handlerFunc
	names    []string
}

// Option настраивает Router.
type Option func(*Router)

// WithQuiet отключает распознавание запросов без префикса.
func WithQuiet(quiet bool) Option {
	return func(r *Router) { r.quiet = quiet }
}

// WithCooldown задаёт интервал между сообщениями одного отправителя; 0 отключает ограничение.
func WithCooldown(d time.Duration) Option {
	return func(r *Router) { r.cooldown.every = d }
}

// WithClock подменяет часы (для тестов ограничителя).
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.cooldown.now = now
		}
	}
}

// WithAdmins задаёт номера администраторов. Сравниваются только цифры.
func WithAdmins(numbers []string) Option {
	return func(r *Router) {
		for _, n := range numbers {
			if d := render.Digits(n); d != "" {
				r.admins[d] = struct{}{}
			}
		}
	}
}

// WithAdminContact задаёт контакт продавца в шапке карточек.
func WithAdminContact(contact string) Option {
	return func(r *Router) { r.adminContact = contact }
}

// WithShowImage добавляет ссылку на картинку в карточку товара.
func WithShowImage(show bool) Option {
	return func(r *Router) { r.showImage = show }
}

// WithStatusLookup подключает запрос статуса в шлюзе для #status.
func WithStatusLookup(s StatusLookup) Option {
	return func(r *Router) { r.status = s }
}

// WithReactor включает реакции на входящие сообщения.
func WithReactor(reactor chat.Reactor) Option {
	return func(r *Router) { r.reactor = reactor }
}

// WithMetrics подключает метрики перезагрузки каталога.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter создаёт роутер команд.
func NewRouter(cat Catalog, orders Orders, messenger domain.Messenger, opts ...Option) *Router {
	r := &Router{
		catalog:   cat,
		orders:    orders,
		messenger: messenger,
		logger:    log.WithField("component", "bot"),
		quiet:     true,
		admins:    make(map[string]struct{}),
		cooldown:  newCooldown(DefaultCooldown, time.Now),
	}
	r.commands = map[string]handlerFunc{
		"#menu":     r.menu,
		"#ping":     r.ping,
		"#refresh":  r.refresh,
		"#kategori": r.categories,
		"#list":     r.list,
		"#harga":    r.search,
		"#cari":     r.search,
		"#detail":   r.detail,
		"#beli":     r.buyLink,
		"#buynow":   r.buyNow,
		"#status":   r.orderStatus,
	}
	r.names = []string{"#menu", "#ping", "#kategori", "#list", "#harga", "#detail", "#beli", "#buynow", "#status", "#refresh"}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAdmin сообщает, входит ли отправитель в список администраторов.
func (r *Router) IsAdmin(msg Message) bool {
	if msg.IsAdmin {
		return true
	}
	_, ok := r.admins[render.Digits(msg.From)]
	return ok
}

// Handle обрабатывает одно сообщение. Ответ пользователю отправляется всегда,
// кроме проигнорированных и отсечённых ограничителем сообщений; возвращаемая
// ошибка нужна только для логов и тестов.
func (r *Router) Handle(ctx context.Context, msg Message) (err error) {
	msg.Text = strings.TrimSpace(msg.Text)
	kind := Classify(msg.Text, r.quiet, r.catalog)
	if kind == KindIgnore {
		return nil
	}
	if !r.cooldown.Allow(msg.From) {
		r.logger.WithField("buyer", msg.From).Debug("message dropped by cooldown")
		return nil
	}

	logger := r.logger.WithFields(log.Fields{"buyer": msg.From, "kind": kind.String()})
	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Error("handler panicked")
			r.reply(ctx, msg, render.GenericError, logger)
			r.react(ctx, msg, chat.ReactionFailed, logger)
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	r.react(ctx, msg, chat.ReactionWorking, logger)

	var text string
	if kind == KindQuery {
		text, err = r.query(ctx, msg)
	} else {
		req := parse(msg)
		handler, ok := r.commands[req.name]
		if !ok {
			handler = r.unknown
		}
		logger = logger.WithField("command", req.name)
		text, err = handler(ctx, req)
	}

	r.reply(ctx, msg, text, logger)
	if err != nil {
		logger.WithError(err).Info("command failed")
		r.react(ctx, msg, chat.ReactionFailed, logger)
		return err
	}
	r.react(ctx, msg, chat.ReactionDone, logger)
	return nil
}

func parse(msg Message) request {
	fields := strings.Fields(msg.Text)
	req := request{Message: msg, name: strings.ToLower(fields[0])}
	req.args = fields[1:]
	req.raw = strings.TrimSpace(strings.TrimPrefix(msg.Text, fields[0]))
	return req
}

func (r *Router) reply(ctx context.Context, msg Message, text string, logger *log.Entry) {
	if text == "" {
		return
	}
	if err := r.messenger.Send(ctx, msg.From, text); err != nil {
		logger.WithError(err).Warn("reply failed")
	}
}

func (r *Router) react(ctx context.Context, msg Message, emoji string, logger *log.Entry) {
	if r.reactor == nil || msg.MessageID == "" {
		return
	}
	if err := r.reactor.React(ctx, msg.From, msg.MessageID, emoji); err != nil {
		logger.WithError(err).Debug("reaction failed")
	}
}

// refreshCatalog подтягивает устаревший каталог; при ошибке продолжаем со старым снимком.
func (r *Router) refreshCatalog(ctx context.Context) {
	if err := r.catalog.Refresh(ctx, false); err != nil {
		r.logger.WithError(err).Warn("catalog refresh failed, serving stale snapshot")
	}
}

// usage оборачивает ErrValidation с подсказкой формата.
func usage(hint string) (string, error) {
	return hint, fmt.Errorf("%w: %s", domain.ErrValidation, hint)
}

// buyerReply переводит ошибку создания заказа в текст для покупателя.
func buyerReply(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return render.BuyNowNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return render.InsufficientStock
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return render.GatewayFailed
	case errors.Is(err, domain.ErrLedgerUnreachable):
		return render.LedgerFailed
	default:
		return render.GenericError
	}
}
