// Package httpapi описывает HTTP-поверхность бота: вебхук платёжного шлюза, админские
// эндпоинты, приём входящих сообщений чата и служебные страницы.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/chat"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

const (
	defaultTimeout  = 60 * time.Second
	adminHeader     = "X-Admin-Secret"
	finishPageText  = "Terima kasih! Silakan cek WhatsApp Anda untuk konfirmasi & produk."
	maxRequestBytes = 1 << 20
)

// Orders: операции менеджера заказов, нужные HTTP-слою.
type Orders interface {
	Settle(ctx context.Context, n domain.PaymentNotification) (saga.SettleOutcome, error)
	Release(ctx context.Context, orderID, reason string) bool
	Pending() int
	Timeline(orderID string) ([]domain.TimelineEvent, error)
}

// Catalog: перезагрузка и статистика каталога.
type Catalog interface {
	Reload(ctx context.Context, parts catalog.Part) error
	Stats() catalog.Stats
}

// SignatureVerifier проверяет подпись вебхука.
type SignatureVerifier interface {
	VerifySignature(n domain.PaymentNotification) bool
}

// ChatHandler обрабатывает входящее сообщение чата.
type ChatHandler interface {
	Handle(ctx context.Context, msg bot.Message) error
}

// Server собирает chi-роутер и держит учёт фоновой обработки сообщений чата.
type Server struct {
	orders    Orders
	catalog   Catalog
	verifier  SignatureVerifier
	chat      ChatHandler
	messenger domain.Messenger
	metrics   *metrics.OrderMetrics
	logger    *log.Entry

	adminSecret string
	admins      []string
	chatToken   string
	version     string
	timeout     time.Duration

	baseCtx context.Context
	inbound sync.WaitGroup
}

// Option настраивает Server.
type Option func(*Server)

// WithAdminSecret задаёт общий секрет админских эндпоинтов. Пустой секрет закрывает их.
func WithAdminSecret(secret string) Option {
	return func(s *Server) { s.adminSecret = secret }
}

// WithAdmins задаёт получателей админских оповещений (chat id).
func WithAdmins(admins []string) Option {
	return func(s *Server) { s.admins = append([]string(nil), admins...) }
}

// WithChatHandler включает приём входящих сообщений на /chat/messages.
func WithChatHandler(h ChatHandler) Option {
	return func(s *Server) { s.chat = h }
}

// WithChatToken требует Bearer-токен от шлюза чата.
func WithChatToken(token string) Option {
	return func(s *Server) { s.chatToken = token }
}

// WithVersion задаёт версию для /status.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMetrics подключает метрики вебхуков и перезагрузок.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTimeout задаёт таймаут обработки запроса.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBaseContext задаёт контекст фоновой обработки сообщений чата.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer создаёт HTTP-сервер бота.
func NewServer(orders Orders, cat Catalog, verifier SignatureVerifier, messenger domain.Messenger, opts ...Option) *Server {
	s := &Server{
		orders:    orders,
		catalog:   cat,
		verifier:  verifier,
		messenger: messenger,
		logger:    log.WithField("component", "httpapi"),
		timeout:   defaultTimeout,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes возвращает роутер со всеми эндпоинтами.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("no route for %s", req.URL.Path)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path)})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "OK") })
	r.Get("/status", s.status)
	r.Get("/pay/finish", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, finishPageText) })

	r.Post("/webhook/midtrans", s.midtransWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/reload", s.adminReload)
		r.Post("/lowstock", s.adminLowStock)
		r.Get("/orders/{id}/timeline", s.adminTimeline)
	})

	r.Post("/chat/messages", s.chatMessage)
	return r
}

type statusResponse struct {
	OK            bool   `json:"ok"`
	Products      int    `json:"products"`
	Promos        int    `json:"promos"`
	PendingOrders int    `json:"pending_orders"`
	Version       string `json:"version"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	stats := s.catalog.Stats()
	writeJSON(w, http.StatusOK, statusResponse{
		OK:            true,
		Products:      stats.Products,
		Promos:        stats.Promos,
		PendingOrders: s.orders.Pending(),
		Version:       s.version,
	})
}

// Wait блокируется до завершения фоновой обработки принятых сообщений.
func (s *Server) Wait() {
	s.inbound.Wait()
}

// Drain ждёт фоновую обработку, но не дольше ctx.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inbound.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) notifyAdmins(ctx context.Context, text string) error {
	if s.messenger == nil || len(s.admins) == 0 {
		return nil
	}
	return chat.Broadcast(ctx, s.messenger, s.admins, text)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
