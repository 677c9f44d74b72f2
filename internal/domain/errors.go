package domain

import "errors"

var (
	// ErrSourceUnavailable: удалённый источник каталога или промокодов недоступен или вернул мусор.
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	// ErrInvalidSignature: подпись вебхука платёжного шлюза не совпала.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInsufficientStock: склад отказал в резервировании.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrGatewayUnavailable: платёжный шлюз не смог создать платёж или ответить на запрос.
	ErrGatewayUnavailable = errors.New("payment gateway error")
	// ErrLedgerUnreachable: сервис склада недоступен (сеть, таймаут, 5xx).
	ErrLedgerUnreachable = errors.New("stock ledger unreachable")
	// ErrFinalizeRejected: склад ответил отказом на finalize.
	ErrFinalizeRejected = errors.New("stock ledger rejected finalize")
	// ErrUnknownCommand: команда чата не распознана.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrValidation: некорректные аргументы команды.
	ErrValidation = errors.New("validation error")

	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrPromoNotFound возвращается, если промокод отсутствует в текущем снимке.
	ErrPromoNotFound = errors.New("promo not found")
	// ErrOrderNotFound возвращается, если заказа нет в таблице.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторной вставке заказа с тем же ID.
	ErrOrderExists = errors.New("order already exists")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего покупателя.
	ErrBuyerRequired = errors.New("buyer is required")
	// Ошибка отсутствующего кода товара.
	ErrProductCodeRequired = errors.New("product code is required")
	// Ошибка при некорректном количестве (<= 0).
	ErrQtyInvalid = errors.New("qty is out of range")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// Ошибка несоответствия итоговой суммы и subtotal-discount.
	ErrAmountMismatch = errors.New("order total does not match subtotal minus discount")

	// ErrDedupeKeyRequired: пустой ключ в dedupe-хранилище.
	ErrDedupeKeyRequired = errors.New("dedupe key is required")
	// ErrDedupeKeyExists: ключ уже присутствует (заказ уже в обработке/оплачен).
	ErrDedupeKeyExists = errors.New("dedupe key already exists")
	// ErrDedupeKeyNotFound: ключ отсутствует или уже вычищен.
	ErrDedupeKeyNotFound = errors.New("dedupe key not found")
)

// IsDuplicate проверяет, что ошибка означает повторную обработку заказа.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDedupeKeyExists)
}

// IsLedgerFailure сообщает, что ошибка пришла со стороны склада.
func IsLedgerFailure(err error) bool {
	return errors.Is(err, ErrLedgerUnreachable) || errors.Is(err, ErrFinalizeRejected) || errors.Is(err, ErrInsufficientStock)
}
