package domain

import (
	"math"
	"time"
)

// PromoType описывает способ расчёта скидки.
type PromoType string

const (
	// PromoTypePercent: процент от subtotal.
	PromoTypePercent PromoType = "percent"
	// PromoTypeNominal: фиксированная сумма.
	PromoTypeNominal PromoType = "nominal"
)

// PromoApplyAll: маркер промокода без ограничения по товарам.
const PromoApplyAll = "all"

// PromoReason: код результата проверки промокода.
type PromoReason string

const (
	PromoOK         PromoReason = "ok"
	PromoInactive   PromoReason = "inactive"
	PromoExpired    PromoReason = "expired"
	PromoQuota      PromoReason = "quota"
	PromoMinQty     PromoReason = "min_qty"
	PromoMinAmount  PromoReason = "min_amount"
	PromoNotApplies PromoReason = "applies"
	PromoBadType    PromoReason = "type"
	PromoBadValue   PromoReason = "value"
	PromoNotFound   PromoReason = "not_found"
)

// PromoNoteDisabled: пометка к заказу, если источник промокодов не подключён.
const PromoNoteDisabled = "Promo data belum dikonfigurasi"

// Promo: промокод из таблицы промо. Снимок только для чтения.
type Promo struct {
	Code  string
	Type  PromoType
	Value float64
	// AppliesTo содержит нормализованные коды товаров либо PromoApplyAll.
	AppliesTo []string
	MinQty    int
	MinAmount int64
	Quota     int
	Used      int
	// ExpiresAt нулевой, если срок не ограничен.
	ExpiresAt time.Time
	Active    bool
	Label     string
}

// PromoCandidate: параметры заказа, к которому применяется промокод.
// ProductCode должен быть нормализован так же, как AppliesTo.
type PromoCandidate struct {
	ProductCode string
	Qty         int
	Subtotal    int64
}

// Check проверяет промокод в фиксированном порядке и возвращает первую причину отказа.
func (p Promo) Check(c PromoCandidate, now time.Time) PromoReason {
	switch {
	case !p.Active:
		return PromoInactive
	case !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt):
		return PromoExpired
	case p.Quota > 0 && p.Used >= p.Quota:
		return PromoQuota
	case p.MinQty > 0 && c.Qty < p.MinQty:
		return PromoMinQty
	case p.MinAmount > 0 && c.Subtotal < p.MinAmount:
		return PromoMinAmount
	case !p.appliesTo(c.ProductCode):
		return PromoNotApplies
	case p.Type != PromoTypePercent && p.Type != PromoTypeNominal:
		return PromoBadType
	case !(p.Value > 0) || math.IsInf(p.Value, 0):
		return PromoBadValue
	}
	return PromoOK
}

// Discount считает скидку для subtotal. Результат всегда в [0, subtotal].
func (p Promo) Discount(subtotal int64) int64 {
	if subtotal <= 0 || !(p.Value > 0) {
		return 0
	}

	var raw float64
	switch p.Type {
	case PromoTypePercent:
		raw = math.Floor(p.Value / 100 * float64(subtotal))
	case PromoTypeNominal:
		raw = math.Floor(p.Value)
	default:
		return 0
	}

	if raw >= float64(subtotal) {
		return subtotal
	}
	if raw <= 0 {
		return 0
	}
	return int64(raw)
}

func (p Promo) appliesTo(code string) bool {
	if len(p.AppliesTo) == 0 {
		return true
	}
	for _, a := range p.AppliesTo {
		if a == PromoApplyAll || a == code {
			return true
		}
	}
	return false
}
