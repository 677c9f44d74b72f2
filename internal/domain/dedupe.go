package domain

import "time"

// DedupeRecord: отметка о том, что заказ уже принят к расчёту.
type DedupeRecord struct {
	Key       string
	TTLAt     time.Time
	CreatedAt time.Time
}

// Expired сообщает, истёк ли срок хранения записи на момент now.
func (r DedupeRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}
