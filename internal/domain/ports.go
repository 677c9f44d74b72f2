package domain

import (
	"context"
	"time"
)

// StockLedger описывает внешний сервис склада и хранилища выдачи.
type StockLedger interface {
	// Reserve ставит резерв под заказ. Отказ склада оборачивает ErrInsufficientStock.
	Reserve(ctx context.Context, req ReserveRequest) (LedgerResult, error)
	// Finalize превращает резерв в списание и возвращает данные для выдачи.
	Finalize(ctx context.Context, orderID string, total int64) (LedgerResult, error)
	// Release снимает резерв (компенсация).
	Release(ctx context.Context, orderID string) error
}

// PaymentGateway описывает платёжного провайдера.
type PaymentGateway interface {
	// CreateQRCharge создаёт QR-платёж.
	CreateQRCharge(ctx context.Context, orderID string, amount int64) (Charge, error)
	// CreateInvoice создаёт redirect-счёт; используется, если QR не создался.
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Charge, error)
	// Status запрашивает текущий статус транзакции.
	Status(ctx context.Context, orderID string) (PaymentNotification, error)
	// VerifySignature проверяет подпись входящего вебхука.
	VerifySignature(n PaymentNotification) bool
}

// InvoiceRequest: параметры redirect-счёта.
type InvoiceRequest struct {
	OrderID      string
	Amount       int64
	BuyerPhone   string
	ProductLabel string
}

// Messenger отправляет сообщения в чат.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// CatalogReader: то, что нужно менеджеру заказов от каталога.
type CatalogReader interface {
	LookupByCode(code string) (Product, bool)
	Promo(code string) (Promo, bool)
	PromosEnabled() bool
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// DedupeRepository хранит идентификаторы уже принятых к расчёту заказов.
type DedupeRepository interface {
	// Add добавляет ключ; ErrDedupeKeyExists, если он уже есть и не истёк.
	Add(key string, ttlAt time.Time) (DedupeRecord, error)
	Get(key string) (DedupeRecord, error)
	Delete(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepReserve  SagaStep = "reserve"
	SagaStepCharge   SagaStep = "charge"
	SagaStepInvoice  SagaStep = "invoice"
	SagaStepFinalize SagaStep = "finalize"
	SagaStepRelease  SagaStep = "release"
	SagaStepDeliver  SagaStep = "deliver"
)
