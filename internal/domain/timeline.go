package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	TimelineOrderCreated    = "OrderCreated"
	TimelineChargeCreated   = "ChargeCreated"
	TimelineChargeFallback  = "ChargeFallback"
	TimelineOrderSettled    = "OrderSettled"
	TimelineFinalizeFailed  = "FinalizeFailed"
	TimelineOrderReleased   = "OrderReleased"
	TimelineDuplicateNotice = "DuplicateNotification"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
