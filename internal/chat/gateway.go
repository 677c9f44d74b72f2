// Package chat реализует исходящий транспорт чата: HTTP-шлюз, логирующий отправитель и рекордер для тестов.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Реакции на входящее сообщение.
const (
	ReactionWorking = "⏳"
	ReactionDone    = "✅"
	ReactionFailed  = "❌"
)

// ErrGatewayRejected: шлюз чата ответил не-2xx.
var ErrGatewayRejected = errors.New("chat gateway rejected message")

// Reactor ставит реакцию на входящее сообщение. Транспорт может его не поддерживать.
type Reactor interface {
	React(ctx context.Context, to, messageID, emoji string) error
}

type outbound struct {
	To        string `json:"to"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
}

// Gateway отправляет сообщения через HTTP-шлюз WhatsApp.
type Gateway struct {
	url    string
	token  string
	client *http.Client
	logger *log.Entry
}

// GatewayOption настраивает Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient задаёт HTTP-клиент.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway создаёт отправителя через шлюз. token передаётся как Bearer.
func NewGateway(url, token string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.WithField("component", "chat-gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send отправляет текст получателю.
func (g *Gateway) Send(ctx context.Context, to, text string) error {
	return g.post(ctx, "/messages", outbound{To: to, Text: text})
}

// React ставит реакцию на сообщение messageID.
func (g *Gateway) React(ctx context.Context, to, messageID, emoji string) error {
	if messageID == "" {
		return nil
	}
	return g.post(ctx, "/reactions", outbound{To: to, MessageID: messageID, Reaction: emoji})
}

func (g *Gateway) post(ctx context.Context, path string, payload outbound) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("to", payload.To).Warn("chat gateway call failed")
		return fmt.Errorf("chat gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	return nil
}

// LogMessenger только пишет исходящие сообщения в лог. Используется без CHAT_GATEWAY_URL.
type LogMessenger struct {
	logger *log.Entry
}

// NewLogMessenger создаёт логирующий отправитель.
func NewLogMessenger(logger *log.Entry) *LogMessenger {
	if logger == nil {
		logger = log.WithField("component", "chat-log")
	}
	return &LogMessenger{logger: logger}
}

// Send пишет сообщение в лог.
func (m *LogMessenger) Send(_ context.Context, to, text string) error {
	m.logger.WithFields(log.Fields{"to": to, "chars": len(text)}).Info(text)
	return nil
}

// React пишет реакцию в лог.
func (m *LogMessenger) React(_ context.Context, to, messageID, emoji string) error {
	m.logger.WithFields(log.Fields{"to": to, "message_id": messageID}).Debug("reaction " + emoji)
	return nil
}

// Broadcast отправляет текст всем получателям и собирает ошибки.
func Broadcast(ctx context.Context, m domain.Messenger, recipients []string, text string) error {
	var errs []error
	for _, to := range recipients {
		if err := m.Send(ctx, to, text); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.Messenger = (*Gateway)(nil)
	_ Reactor          = (*Gateway)(nil)
	_ domain.Messenger = (*LogMessenger)(nil)
	_ Reactor          = (*LogMessenger)(nil)
)
