// Package inventory содержит клиент внешнего склада (резерв, списание, выдача данных аккаунтов).
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	actionReserve  = "reserve"
	actionFinalize = "finalize"
	actionRelease  = "release"
)

// maxResponseBytes ограничивает размер ответа склада.
const maxResponseBytes = 1 << 20

type ledgerRequest struct {
	Secret  string `json:"secret"`
	Action  string `json:"action"`
	Code    string `json:"kode,omitempty"`
	Qty     int    `json:"qty,omitempty"`
	OrderID string `json:"order_id"`
	BuyerID string `json:"buyer_jid,omitempty"`
	Total   int64  `json:"total,omitempty"`
}

// Client вызывает веб-приложение склада по HTTP (JSON POST).
type Client struct {
	url    string
	secret string
	client *http.Client
	logger *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт HTTP-клиент (таймауты, транспорт).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithLogger задаёт логгер клиента.
func WithLogger(logger *log.Entry) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient создаёт клиента склада.
func NewClient(url, secret string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.WithField("component", "stock-ledger"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reserve ставит резерв. Отказ склада (ok=false) возвращается как ErrInsufficientStock
// с сообщением склада.
func (c *Client) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.LedgerResult, error) {
	res, err := c.call(ctx, ledgerRequest{
		Action:  actionReserve,
		Code:    req.ProductCode,
		Qty:     req.Qty,
		OrderID: req.OrderID,
		BuyerID: req.BuyerID,
		Total:   req.Total,
	})
	if err != nil {
		return domain.LedgerResult{}, err
	}
	if !res.OK {
		return res, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, res.Message)
	}
	return res, nil
}

// Finalize списывает резерв и возвращает данные для выдачи.
func (c *Client) Finalize(ctx context.Context, orderID string, total int64) (domain.LedgerResult, error) {
	res, err := c.call(ctx, ledgerRequest{
		Action:  actionFinalize,
		OrderID: orderID,
		Total:   total,
	})
	if err != nil {
		return domain.LedgerResult{}, err
	}
	if !res.OK {
		return res, fmt.Errorf("%w: %s", domain.ErrFinalizeRejected, res.Message)
	}
	return res, nil
}

// Release снимает резерв. Вызывающая сторона считает его best-effort.
func (c *Client) Release(ctx context.Context, orderID string) error {
	res, err := c.call(ctx, ledgerRequest{
		Action:  actionRelease,
		OrderID: orderID,
	})
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("%w: release refused: %s", domain.ErrLedgerUnreachable, res.Message)
	}
	return nil
}

func (c *Client) call(ctx context.Context, payload ledgerRequest) (domain.LedgerResult, error) {
	payload.Secret = c.secret
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.LedgerResult{}, fmt.Errorf("marshal ledger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: build request: %v", domain.ErrLedgerUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"action":   payload.Action,
			"order_id": payload.OrderID,
		}).Warn("stock ledger call failed")
		return domain.LedgerResult{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: read body: %v", domain.ErrLedgerUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.LedgerResult{}, fmt.Errorf("%w: unexpected status %d", domain.ErrLedgerUnreachable, resp.StatusCode)
	}

	var res domain.LedgerResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: decode response: %v", domain.ErrLedgerUnreachable, err)
	}

	c.logger.WithFields(log.Fields{
		"action":   payload.Action,
		"order_id": payload.OrderID,
		"ok":       res.OK,
		"duration": time.Since(start).String(),
	}).Debug("stock ledger call completed")

	return res, nil
}

var _ domain.StockLedger = (*Client)(nil)
