// Package payment содержит клиент платёжного шлюза Midtrans (QRIS, Snap, статус, подпись вебхука).
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	coreProductionURL = "https://api.midtrans.com"
	coreSandboxURL    = "https://api.sandbox.midtrans.com"
	snapProductionURL = "https://app.midtrans.com"
	snapSandboxURL    = "https://app.sandbox.midtrans.com"

	maxResponseBytes = 1 << 20
)

// Config: параметры подключения к Midtrans.
type Config struct {
	ServerKey   string
	Production  bool
	FinishURL   string
	CoreBaseURL string // переопределяет хост Core API (для тестов)
	SnapBaseURL string // переопределяет хост Snap (для тестов)
	HTTPClient  *http.Client
	Logger      *log.Entry
}

// Midtrans реализует domain.PaymentGateway.
type Midtrans struct {
	serverKey string
	coreURL   string
	snapURL   string
	finishURL string
	client    *http.Client
	logger    *log.Entry
}

// NewMidtrans создаёт клиента Midtrans.
func NewMidtrans(cfg Config) *Midtrans {
	m := &Midtrans{
		serverKey: cfg.ServerKey,
		coreURL:   coreSandboxURL,
		snapURL:   snapSandboxURL,
		finishURL: cfg.FinishURL,
		client:    cfg.HTTPClient,
		logger:    cfg.Logger,
	}
	if cfg.Production {
		m.coreURL = coreProductionURL
		m.snapURL = snapProductionURL
	}
	if cfg.CoreBaseURL != "" {
		m.coreURL = strings.TrimRight(cfg.CoreBaseURL, "/")
	}
	if cfg.SnapBaseURL != "" {
		m.snapURL = strings.TrimRight(cfg.SnapBaseURL, "/")
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: 30 * time.Second}
	}
	if m.logger == nil {
		m.logger = log.WithField("component", "midtrans")
	}
	return m
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type chargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
}

type chargeResponse struct {
	StatusCode    string                 `json:"status_code"`
	StatusMessage string                 `json:"status_message"`
	QRString      string                 `json:"qr_string"`
	Actions       []domain.PaymentAction `json:"actions"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	CustomerDetails    struct {
		Phone string `json:"phone,omitempty"`
	} `json:"customer_details"`
	Callbacks *struct {
		Finish string `json:"finish"`
	} `json:"callbacks,omitempty"`
	CreditCard struct {
		Secure bool `json:"secure"`
	} `json:"credit_card"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// CreateQRCharge создаёт QRIS-платёж через Core API.
func (m *Midtrans) CreateQRCharge(ctx context.Context, orderID string, amount int64) (domain.Charge, error) {
	var resp chargeResponse
	err := m.do(ctx, http.MethodPost, m.coreURL+"/v2/charge", chargeRequest{
		PaymentType:        "qris",
		TransactionDetails: transactionDetails{OrderID: orderID, GrossAmount: amount},
	}, &resp)
	if err != nil {
		return domain.Charge{}, err
	}
	if resp.StatusCode != "" && !strings.HasPrefix(resp.StatusCode, "2") {
		return domain.Charge{}, fmt.Errorf("%w: charge status %s: %s", domain.ErrGatewayUnavailable, resp.StatusCode, resp.StatusMessage)
	}
	if resp.QRString == "" && len(resp.Actions) == 0 {
		return domain.Charge{}, fmt.Errorf("%w: charge response without qr", domain.ErrGatewayUnavailable)
	}
	return domain.Charge{
		QRString: resp.QRString,
		PayURL:   PickPayURL(resp.Actions),
	}, nil
}

// CreateInvoice создаёт Snap-счёт с переходом на страницу оплаты.
func (m *Midtrans) CreateInvoice(ctx context.Context, in domain.InvoiceRequest) (domain.Charge, error) {
	req := snapRequest{
		TransactionDetails: transactionDetails{OrderID: in.OrderID, GrossAmount: in.Amount},
		ItemDetails: []itemDetail{{
			ID:       in.OrderID,
			Price:    in.Amount,
			Quantity: 1,
			Name:     truncate(in.ProductLabel, 50),
		}},
	}
	req.CustomerDetails.Phone = in.BuyerPhone
	req.CreditCard.Secure = true
	if m.finishURL != "" {
		req.Callbacks = &struct {
			Finish string `json:"finish"`
		}{Finish: m.finishURL}
	}

	var resp snapResponse
	if err := m.do(ctx, http.MethodPost, m.snapURL+"/snap/v1/transactions", req, &resp); err != nil {
		return domain.Charge{}, err
	}
	if resp.RedirectURL == "" {
		return domain.Charge{}, fmt.Errorf("%w: snap: %s", domain.ErrGatewayUnavailable, strings.Join(resp.ErrorMessages, "; "))
	}
	return domain.Charge{Token: resp.Token, PayURL: resp.RedirectURL, Fallback: true}, nil
}

// Status запрашивает статус транзакции.
func (m *Midtrans) Status(ctx context.Context, orderID string) (domain.PaymentNotification, error) {
	var resp domain.PaymentNotification
	if err := m.do(ctx, http.MethodGet, m.coreURL+"/v2/"+url.PathEscape(orderID)+"/status", nil, &resp); err != nil {
		return domain.PaymentNotification{}, err
	}
	return resp, nil
}

// VerifySignature сверяет signature_key вебхука.
func (m *Midtrans) VerifySignature(n domain.PaymentNotification) bool {
	return VerifySignature(n, m.serverKey)
}

func (m *Midtrans) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal midtrans request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(m.serverKey, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.WithError(err).WithField("endpoint", endpoint).Warn("midtrans request failed")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.WithFields(log.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("midtrans returned error status")
		return fmt.Errorf("%w: http %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, truncate(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}

// PickPayURL выбирает ссылку для оплаты: desktop, web, mobile, deeplink, иначе первую.
func PickPayURL(actions []domain.PaymentAction) string {
	if len(actions) == 0 {
		return ""
	}
	for _, want := range []string{"desktop", "web", "mobile", "deeplink"} {
		for _, a := range actions {
			if a.URL != "" && strings.Contains(strings.ToLower(a.Name), want) {
				return a.URL
			}
		}
	}
	return actions[0].URL
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ domain.PaymentGateway = (*Midtrans)(nil)
