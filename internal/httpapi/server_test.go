package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/chat"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/render"
	"github.com/vladislavdragonenkov/storebot/internal/service/inventory"
	"github.com/vladislavdragonenkov/storebot/internal/service/payment"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

const (
	testSecret = "s3cret"
	buyer      = "6281234567890@c.us"
	adminChat  = "6289900011122@c.us"
)

type fixture struct {
	server  *Server
	handler http.Handler
	chat    *chat.Recorder
	ledger  *inventory.MockService
	gateway *payment.MockService
	manager *saga.Manager
	cache   *catalog.Cache
}

func newFixture(t *testing.T, managerOpts ...saga.Option) *fixture {
	t.Helper()

	f := &fixture{
		chat:    chat.NewRecorder(),
		ledger:  inventory.NewMockService(),
		gateway: payment.NewMockService(),
		cache: catalog.NewCache(
			catalog.StaticSource{Products: []domain.Product{
				{Code: "SPO-3B", Name: "Spotify Premium 3 Bulan", Price: 25000, Category: "Musik"},
				{Code: "canva", Name: "Canva Pro", Price: 15000, Category: "Desain"},
			}},
			catalog.WithPromoSource(catalog.StaticSource{Promos: []domain.Promo{
				{Code: "HEMAT", Type: domain.PromoTypePercent, Value: 10, AppliesTo: []string{domain.PromoApplyAll}, Active: true},
			}}),
		),
	}
	require.NoError(t, f.cache.Refresh(context.Background(), true))

	m, err := saga.NewManager(saga.Deps{
		Ledger:    f.ledger,
		Gateway:   f.gateway,
		Messenger: f.chat,
		Catalog:   f.cache,
	}, managerOpts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Shutdown()
		m.Wait()
	})
	f.manager = m

	router := bot.NewRouter(f.cache, m, f.chat, bot.WithCooldown(0))
	f.server = NewServer(m, f.cache, f.gateway, f.chat,
		WithAdminSecret(testSecret),
		WithAdmins([]string{adminChat}),
		WithChatHandler(router),
		WithVersion("v1.2.3"),
	)
	f.handler = f.server.Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// createOrder оформляет заказ через менеджер и возвращает его.
func (f *fixture) createOrder(t *testing.T) domain.Order {
	t.Helper()
	res, err := f.manager.Create(context.Background(), saga.PurchaseRequest{
		BuyerID:     buyer,
		BuyerPhone:  render.Digits(buyer),
		ProductCode: "SPO-3B",
		Qty:         2,
	})
	require.NoError(t, err)
	return res.Order
}

func (f *fixture) notification(order domain.Order, status domain.TransactionStatus) domain.PaymentNotification {
	return f.gateway.Sign(domain.PaymentNotification{
		OrderID:           order.ID,
		TransactionStatus: status,
		StatusCode:        "200",
		GrossAmount:       "50000.00",
		PaymentType:       "qris",
		TransactionID:     "trx-1",
	})
}

func TestServer_StaticPages(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{name: "root", path: "/", status: http.StatusOK, contains: "OK"},
		{name: "pay finish", path: "/pay/finish", status: http.StatusOK, contains: "Terima kasih!"},
		{name: "unknown route", path: "/nope", status: http.StatusNotFound, contains: "no route for /nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestServer_Status(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)

	rec := f.do(t, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, statusResponse{OK: true, Products: 2, Promos: 1, PendingOrders: 1, Version: "v1.2.3"}, got)
}

func TestWebhook_BadSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	n := f.notification(order, domain.TransactionSettlement)
	n.SignatureKey = "forged"

	rec := f.do(t, http.MethodPost, "/webhook/midtrans", n, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "bad signature", rec.Body.String())

	_, finalize, release := f.ledger.Calls()
	assert.Zero(t, finalize)
	assert.Zero(t, release)
	assert.Equal(t, 1, f.manager.Pending())
}

func TestWebhook_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/midtrans", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_SettlementDeliversOnce(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.chat.Reset()

	n := f.notification(order, domain.TransactionSettlement)
	rec := f.do(t, http.MethodPost, "/webhook/midtrans", n, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	sent := f.chat.SentTo(buyer)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "TRANSAKSI SUKSES")
	assert.Contains(t, sent[0], order.ID)
	assert.Contains(t, sent[1], "buyer@example.com")
	assert.Zero(t, f.manager.Pending())

	// Повтор того же вебхука подтверждается, но ничего не делает.
	rec = f.do(t, http.MethodPost, "/webhook/midtrans", n, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, finalize, _ := f.ledger.Calls()
	assert.Equal(t, 1, finalize)
	assert.Len(t, f.chat.SentTo(buyer), 2)
}

func TestWebhook_CaptureCountsAsSuccess(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	rec := f.do(t, http.MethodPost, "/webhook/midtrans", f.notification(order, domain.TransactionCapture), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, finalize, _ := f.ledger.Calls()
	assert.Equal(t, 1, finalize)
}

func TestWebhook_FinalizeFailureAsksForRetry(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.ledger.SetFinalizeErr(domain.ErrLedgerUnreachable)

	n := f.notification(order, domain.TransactionSettlement)
	rec := f.do(t, http.MethodPost, "/webhook/midtrans", n, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, f.manager.Pending())

	// После восстановления склада повтор вебхука проходит.
	f.ledger.SetFinalizeErr(nil)
	rec = f.do(t, http.MethodPost, "/webhook/midtrans", n, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.manager.Pending())

	_, finalize, _ := f.ledger.Calls()
	assert.Equal(t, 2, finalize)
}

func TestWebhook_TerminalFailureReleases(t *testing.T) {
	for _, status := range []domain.TransactionStatus{domain.TransactionExpire, domain.TransactionCancel, domain.TransactionDeny} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			order := f.createOrder(t)
			f.chat.Reset()

			rec := f.do(t, http.MethodPost, "/webhook/midtrans", f.notification(order, status), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			_, _, release := f.ledger.Calls()
			assert.Equal(t, 1, release)
			assert.Zero(t, f.manager.Pending())
			assert.Equal(t, []string{render.Cancelled(status)}, f.chat.SentTo(buyer))
		})
	}
}

func TestWebhook_PendingStatusIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	rec := f.do(t, http.MethodPost, "/webhook/midtrans", f.notification(order, domain.TransactionPending), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 1, f.manager.Pending())
}

func TestWebhook_LateSettlementAfterTimeout(t *testing.T) {
	f := newFixture(t, saga.WithPayTTL(30*time.Millisecond))
	order := f.createOrder(t)

	require.Eventually(t, func() bool {
		return f.manager.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, f.chat.SentTo(buyer), render.TimeoutNotice)

	f.chat.Reset()
	rec := f.do(t, http.MethodPost, "/webhook/midtrans", f.notification(order, domain.TransactionSettlement), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, finalize, release := f.ledger.Calls()
	assert.Zero(t, finalize)
	assert.Equal(t, 1, release)
	assert.Empty(t, f.chat.SentTo(buyer))
}

func TestAdmin_Authorization(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		header http.Header
		status int
	}{
		{name: "no secret", body: map[string]string{"what": "all"}, status: http.StatusUnauthorized},
		{name: "wrong body secret", body: map[string]string{"secret": "nope"}, status: http.StatusUnauthorized},
		{name: "body secret", body: map[string]string{"secret": testSecret}, status: http.StatusOK},
		{name: "header secret", header: http.Header{adminHeader: {testSecret}}, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/admin/reload", tt.body, tt.header)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAdmin_EmptySecretLocksEndpoints(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.manager, f.cache, f.gateway, f.chat)

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", strings.NewReader(`{"secret":""}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_Reload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/reload", reloadRequest{Secret: testSecret, What: "produk", Note: "stok baru"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got reloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, reloadResponse{OK: true, Products: 2, Promos: 1}, got)
	assert.Equal(t, []string{render.ReloadRequested("stok baru")}, f.chat.SentTo(adminChat))
}

func TestAdmin_ReloadErrorsReturnOKFalse(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		srv      *Server
		what     string
		contains string
	}{
		{name: "unknown target", srv: f.server, what: "semua", contains: "unknown reload target"},
		{name: "source failure", srv: NewServer(f.manager, failingCatalog{}, f.gateway, f.chat, WithAdminSecret(testSecret)), what: "all", contains: "sheet down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(reloadRequest{Secret: testSecret, What: tt.what})
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/admin/reload", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			tt.srv.Routes().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var got errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.False(t, got.OK)
			assert.Contains(t, got.Error, tt.contains)
		})
	}
}

func TestAdmin_LowStock(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/lowstock", lowStockRequest{
		Secret: testSecret,
		Items:  []render.LowStockItem{{Code: "SPO-3B", Ready: 1}, {Code: "canva", Ready: 0}},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	sent := f.chat.SentTo(adminChat)
	require.Len(t, sent, 1)
	assert.Equal(t, "⚠️ *Low Stock Alert*\n• SPO-3B: ready 1\n• canva: ready 0", sent[0])

	// Пустой список подтверждается без рассылки.
	rec = f.do(t, http.MethodPost, "/admin/lowstock", lowStockRequest{Secret: testSecret}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.chat.SentTo(adminChat), 1)
}

func TestAdmin_Timeline(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	rec := f.do(t, http.MethodGet, "/admin/orders/"+order.ID+"/timeline", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := http.Header{adminHeader: {testSecret}}
	rec = f.do(t, http.MethodGet, "/admin/orders/"+order.ID+"/timeline", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var got timelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.ID, got.OrderID)
	require.NotEmpty(t, got.Events)
	assert.Equal(t, domain.TimelineOrderCreated, got.Events[0].Type)

	rec = f.do(t, http.MethodGet, "/admin/orders/PBS-0-none/timeline", nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat_InboundBuyNowThenSettle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/chat/messages", inboundMessage{From: buyer, Text: "#buynow spo-3b 1 hemat"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.server.Wait()

	pending, err := f.manager.PendingByBuyer(buyer)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	order := pending[0]
	assert.Equal(t, int64(22500), order.Total)
	assert.Equal(t, "HEMAT", order.PromoCode)

	f.chat.Reset()
	rec = f.do(t, http.MethodPost, "/webhook/midtrans", f.notification(order, domain.TransactionSettlement), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sent := f.chat.SentTo(buyer)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], order.ID)
	_, _, release := f.ledger.Calls()
	assert.Zero(t, release)
}

func TestChat_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "missing from", body: inboundMessage{Text: "#ping"}, status: http.StatusBadRequest},
		{name: "missing text", body: inboundMessage{From: buyer}, status: http.StatusBadRequest},
		{name: "accepted", body: inboundMessage{From: buyer, Text: "#ping"}, status: http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/chat/messages", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	f.server.Wait()
	assert.Contains(t, f.chat.SentTo(buyer), render.Pong)
}

func TestChat_TokenAndDisabled(t *testing.T) {
	f := newFixture(t)
	router := bot.NewRouter(f.cache, f.manager, f.chat, bot.WithCooldown(0))

	guarded := NewServer(f.manager, f.cache, f.gateway, f.chat, WithChatHandler(router), WithChatToken("tok")).Routes()
	disabled := NewServer(f.manager, f.cache, f.gateway, f.chat).Routes()

	tests := []struct {
		name    string
		handler http.Handler
		auth    string
		status  int
	}{
		{name: "missing token", handler: guarded, status: http.StatusUnauthorized},
		{name: "wrong token", handler: guarded, auth: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", handler: guarded, auth: "Bearer tok", status: http.StatusAccepted},
		{name: "intake disabled", handler: disabled, status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(`{"from":"`+buyer+`","text":"#ping"}`))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestChat_AdminFlagRequiresToken(t *testing.T) {
	f := newFixture(t)
	body := `{"from":"` + buyer + `","text":"#refresh","is_admin":true}`

	req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.server.Wait()
	assert.Equal(t, []string{render.AdminOnly}, f.chat.SentTo(buyer))

	f.chat.Reset()
	router := bot.NewRouter(f.cache, f.manager, f.chat, bot.WithCooldown(0))
	guarded := NewServer(f.manager, f.cache, f.gateway, f.chat, WithChatHandler(router), WithChatToken("tok"))
	req = httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	guarded.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	guarded.Wait()

	sent := f.chat.SentTo(buyer)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Reload sukses")
}

func TestServer_DrainRespectsContext(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.server.Drain(context.Background()))

	block := make(chan struct{})
	srv := NewServer(f.manager, f.cache, f.gateway, f.chat, WithChatHandler(blockingHandler(block)))
	h := srv.Routes()
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(`{"from":"a","text":"b"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Drain(ctx), context.DeadlineExceeded)

	close(block)
	srv.Wait()
}

type failingCatalog struct{}

func (failingCatalog) Reload(context.Context, catalog.Part) error {
	return errors.New("sheet down")
}

func (failingCatalog) Stats() catalog.Stats { return catalog.Stats{} }

type blockingHandler chan struct{}

func (b blockingHandler) Handle(context.Context, bot.Message) error {
	<-b
	return nil
}
