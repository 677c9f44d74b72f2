// Package render собирает тексты сообщений для покупателя и админов.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// WIB: часовой пояс, в котором показываются даты покупателю.
var WIB = time.FixedZone("WIB", 7*60*60)

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// IDR форматирует сумму в рупиях: 10000 -> "Rp 10.000".
func IDR(amount int64) string {
	p := message.NewPrinter(language.Indonesian)
	if amount < 0 {
		return "-Rp " + p.Sprintf("%d", -amount)
	}
	return "Rp " + p.Sprintf("%d", amount)
}

// DateID форматирует момент по-индонезийски: "2 Januari 2026 pukul 14.05".
func DateID(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.In(WIB)
	return fmt.Sprintf("%d %s %d pukul %02d.%02d", t.Day(), months[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// gatewayTimeLayout: формат времени в уведомлениях Midtrans (время Джакарты).
const gatewayTimeLayout = "2006-01-02 15:04:05"

// GatewayTime разбирает transaction_time/settlement_time из уведомления.
func GatewayTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(gatewayTimeLayout, s, WIB); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// PaymentMethod переводит payment_type в понятное покупателю название.
func PaymentMethod(n domain.PaymentNotification) string {
	t := strings.ToLower(strings.TrimSpace(n.PaymentType))
	switch t {
	case "qris":
		return "QRIS"
	case "bank_transfer":
		if len(n.VANumbers) > 0 && n.VANumbers[0].Bank != "" {
			return "Virtual Account " + strings.ToUpper(n.VANumbers[0].Bank)
		}
		if n.PermataVANumber != "" {
			return "Virtual Account PERMATA"
		}
		return "Virtual Account"
	case "echannel":
		return "Mandiri Bill"
	case "gopay":
		return "GoPay"
	case "credit_card":
		return "Kartu Kredit"
	case "shopeepay":
		return "ShopeePay"
	case "alfamart", "indomaret":
		return strings.ToUpper(t[:1]) + t[1:]
	case "":
		return "-"
	default:
		return t
	}
}

// Digits оставляет в строке только цифры (номер телефона из chat id).
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
