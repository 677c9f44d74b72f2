package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// MockService: конфигурируемая заглушка StockLedger для тестов. Безопасна для конкурентного использования.
type MockService struct {
	mu sync.Mutex

	ReserveErr    error
	FinalizeErr   error
	ReleaseErr    error
	FinalizeItems []domain.LedgerItem
	AfterMessage  string
	// FinalizeHook вызывается внутри Finalize до возврата результата (например, чтобы
	// придержать вызов и смоделировать гонку с таймером).
	FinalizeHook func(orderID string)

	ReserveCalls  int
	FinalizeCalls int
	ReleaseCalls  int
	Reserved      []domain.ReserveRequest
	Finalized     []string
	Released      []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		FinalizeItems: []domain.LedgerItem{{Data: "email: buyer@example.com\npassword: rahasia"}},
	}
}

// Reserve возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Reserve(_ context.Context, req domain.ReserveRequest) (domain.LedgerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReserveCalls++
	m.Reserved = append(m.Reserved, req)
	if m.ReserveErr != nil {
		return domain.LedgerResult{}, m.ReserveErr
	}
	return domain.LedgerResult{OK: true}, nil
}

// Finalize возвращает настроенные данные выдачи и считает вызовы.
func (m *MockService) Finalize(_ context.Context, orderID string, _ int64) (domain.LedgerResult, error) {
	m.mu.Lock()
	m.FinalizeCalls++
	m.Finalized = append(m.Finalized, orderID)
	hook := m.FinalizeHook
	err := m.FinalizeErr
	res := domain.LedgerResult{OK: true, Items: append([]domain.LedgerItem(nil), m.FinalizeItems...), AfterMessage: m.AfterMessage}
	m.mu.Unlock()

	if hook != nil {
		hook(orderID)
	}
	if err != nil {
		return domain.LedgerResult{}, err
	}
	return res, nil
}

// Release возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Release(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	m.Released = append(m.Released, orderID)
	return m.ReleaseErr
}

// Calls возвращает счётчики под мьютексом.
func (m *MockService) Calls() (reserve, finalize, release int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReserveCalls, m.FinalizeCalls, m.ReleaseCalls
}

// SetFinalizeErr меняет ошибку finalize под мьютексом.
func (m *MockService) SetFinalizeErr(err error) {
	m.mu.Lock()
	m.FinalizeErr = err
	m.mu.Unlock()
}

var _ domain.StockLedger = (*MockService)(nil)

// NoopService всегда отвечает успехом; используется без настроенного склада.
type NoopService struct{}

func (NoopService) Reserve(context.Context, domain.ReserveRequest) (domain.LedgerResult, error) {
	return domain.LedgerResult{OK: true}, nil
}

func (NoopService) Finalize(context.Context, string, int64) (domain.LedgerResult, error) {
	return domain.LedgerResult{OK: true}, nil
}

func (NoopService) Release(context.Context, string) error { return nil }

var _ domain.StockLedger = NoopService{}
