package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusReserving: склад резервирует товар; в таблицу заказ ещё не попал.
	OrderStatusReserving OrderStatus = "reserving"
	// OrderStatusPending: резерв есть, ждём оплату; активен ровно один таймер.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusSettled: оплата подтверждена, склад финализирован, данные выданы.
	OrderStatusSettled OrderStatus = "settled"
	// OrderStatusReleased: отмена/истечение/таймаут, резерв снят.
	OrderStatusReleased OrderStatus = "released"
)

// Order: заказ, ожидающий оплаты.
type Order struct {
	ID          string
	BuyerID     string
	BuyerPhone  string
	ProductCode string
	ProductName string
	Qty         int
	UnitPrice   int64
	Subtotal    int64
	Discount    int64
	Total       int64
	PromoCode   string
	PromoLabel  string
	// PromoNote заполняется, если промокод не прошёл проверку: "promo invalid: <reason>".
	PromoNote string
	Status    OrderStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.ProductCode == "" {
		errs = append(errs, ErrProductCodeRequired)
	}
	if o.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}
	if o.UnitPrice < 0 || o.Subtotal < 0 || o.Discount < 0 || o.Total < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.Subtotal-o.Discount != o.Total {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// BuyerShortID: последние пять цифр идентификатора покупателя.
func (o *Order) BuyerShortID() string {
	digits := make([]rune, 0, len(o.BuyerID))
	for _, r := range o.BuyerID {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) > 5 {
		digits = digits[len(digits)-5:]
	}
	return string(digits)
}
