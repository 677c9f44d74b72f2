package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// MockService: конфигурируемая заглушка PaymentGateway для тестов.
type MockService struct {
	mu sync.Mutex

	QRErr         error
	InvoiceErr    error
	StatusErr     error
	StatusPayload domain.PaymentNotification
	// ServerKey используется для проверки подписи, как у настоящего шлюза.
	ServerKey string

	QRCalls      int
	InvoiceCalls int
	StatusCalls  int
	Charged      []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{ServerKey: "test-server-key"}
}

// CreateQRCharge возвращает QR или настроенную ошибку и считает вызовы.
func (m *MockService) CreateQRCharge(_ context.Context, orderID string, amount int64) (domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QRCalls++
	m.Charged = append(m.Charged, orderID)
	if m.QRErr != nil {
		return domain.Charge{}, m.QRErr
	}
	return domain.Charge{QRString: "00020101021226-" + orderID, PayURL: "https://pay.test/qr/" + orderID}, nil
}

// CreateInvoice возвращает ссылку на счёт или настроенную ошибку.
func (m *MockService) CreateInvoice(_ context.Context, req domain.InvoiceRequest) (domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvoiceCalls++
	if m.InvoiceErr != nil {
		return domain.Charge{}, m.InvoiceErr
	}
	return domain.Charge{Token: "tok-" + req.OrderID, PayURL: "https://pay.test/snap/" + req.OrderID, Fallback: true}, nil
}

// Status возвращает настроенный статус.
func (m *MockService) Status(_ context.Context, orderID string) (domain.PaymentNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls++
	if m.StatusErr != nil {
		return domain.PaymentNotification{}, m.StatusErr
	}
	p := m.StatusPayload
	if p.OrderID == "" {
		p.OrderID = orderID
	}
	return p, nil
}

// VerifySignature проверяет подпись по ServerKey.
func (m *MockService) VerifySignature(n domain.PaymentNotification) bool {
	m.mu.Lock()
	key := m.ServerKey
	m.mu.Unlock()
	return VerifySignature(n, key)
}

// Sign подписывает уведомление ключом мока (для тестов вебхука).
func (m *MockService) Sign(n domain.PaymentNotification) domain.PaymentNotification {
	m.mu.Lock()
	key := m.ServerKey
	m.mu.Unlock()
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, key)
	return n
}

// Calls возвращает счётчики под мьютексом.
func (m *MockService) Calls() (qr, invoice int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QRCalls, m.InvoiceCalls
}

var _ domain.PaymentGateway = (*MockService)(nil)
