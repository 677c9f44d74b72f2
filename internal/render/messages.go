package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Тексты ответов, которые не зависят от данных.
const (
	Pong              = "Pong ✅ Bot aktif."
	AdminOnly         = "❌ Hanya admin."
	NoCategories      = "Belum ada kategori."
	NoProducts        = "Belum ada produk."
	CodeNotFound      = "Kode tidak ditemukan."
	BuyNowNotFound    = "Kode tidak ditemukan. Contoh: *#buynow spo3b 1*"
	SearchNotFound    = "❌ Tidak ditemukan."
	QueryNotFound     = "❌ Tidak ditemukan. Coba ketik nama produk/kode yang lebih spesifik."
	InsufficientStock = "Maaf, stok tidak mencukupi. Coba kurangi jumlah / pilih produk lain."
	GatewayFailed     = "⚠️ Pembayaran sedang bermasalah, order dibatalkan dan stok dikembalikan. Silakan coba lagi nanti."
	LedgerFailed      = "⚠️ Layanan stok sedang bermasalah. Coba lagi nanti."
	StatusNotFound    = "❌ OrderID tidak ditemukan atau belum ada transaksi."
	TimeoutNotice     = "⚠️ Pembayaran belum diterima dan order dibatalkan otomatis. Silakan #buynow lagi bila masih ingin membeli."
	GenericError      = "⚠️ Terjadi error. Coba lagi nanti."

	UsageSearch = "Format: *#harga <kata kunci>*"
	UsageDetail = "Format: *#detail <kode>*"
	UsageBeli   = "Format: *#beli <kode>*"
	UsageBuyNow = "Format: *#buynow <kode> <jumlah> [PROMO]*"
	UsageStatus = "Format: *#status <OrderID>*"
)

// CardHeader: шапка списка товаров.
func CardHeader(adminContact string) string {
	if adminContact == "" {
		adminContact = "-"
	}
	return strings.Join([]string{
		"╭────〔 BOT AUTO ORDER 〕─",
		"┊・Untuk membeli ketik perintah berikut",
		"┊・#buynow Kode(spasi)JumlahAkun",
		"┊・Contact Admin: " + adminContact,
		"╰┈┈┈┈┈┈┈┈",
	}, "\n")
}

// ProductCard: карточка одного товара.
func ProductCard(p domain.Product) string {
	price := "*" + IDR(p.Price) + "*"
	if p.OldPrice > 0 {
		price = "~" + IDR(p.OldPrice) + "~ → " + price
	}

	total := dash(p.Total)
	if p.Total == "" && p.Stock != "" && p.Sold != "" {
		stock, err1 := strconv.Atoi(p.Stock)
		sold, err2 := strconv.Atoi(p.Sold)
		if err1 == nil && err2 == nil {
			total = strconv.Itoa(stock + sold)
		}
	}

	desc := "-"
	if p.Description != "" {
		var parts []string
		for _, s := range strings.Split(p.Description, "||") {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		desc = strings.Join(parts, ", ")
	}

	lines := []string{
		"*╭────〔 " + strings.ToUpper(p.Name) + " 〕─*",
		"┊・Harga: " + price,
		"┊・Stok Tersedia: " + dash(p.Stock),
		"┊・Stok Terjual: " + dash(p.Sold),
		"┊・Total Stok: " + total,
		"┊・Kode: " + dash(p.Code),
		"┊・Desk: " + desc,
	}
	if len(p.Aliases) > 0 {
		lines = append(lines, "┊・Alias: "+strings.Join(p.Aliases, ", "))
	}
	lines = append(lines, "╰┈┈┈┈┈┈┈┈")
	return strings.Join(lines, "\n")
}

// ProductDetail: шапка и карточка; при showImage добавляется ссылка на картинку.
func ProductDetail(p domain.Product, adminContact string, showImage bool) string {
	text := CardHeader(adminContact) + "\n\n" + ProductCard(p)
	if showImage && isHTTP(p.Icon) {
		text += "\n\n" + p.Icon
	}
	return text
}

// ProductPage: страница списка товаров; nextCmd подставляется в подсказку о следующей странице.
func ProductPage(adminContact string, items []domain.Product, page, pages int, nextCmd string) string {
	chunks := make([]string, 0, len(items)+2)
	chunks = append(chunks, CardHeader(adminContact))
	for _, p := range items {
		chunks = append(chunks, ProductCard(p))
	}
	text := strings.Join(chunks, "\n\n")
	if pages > 1 || nextCmd != "" {
		text += fmt.Sprintf("\n\nHalaman %d/%d", page, pages)
		if page < pages && nextCmd != "" {
			text += fmt.Sprintf(" — *%s %d* untuk berikutnya.", nextCmd, page+1)
		}
	}
	return text
}

// ProductList: карточки без пагинации (результаты поиска).
func ProductList(adminContact string, items []domain.Product) string {
	return ProductPage(adminContact, items, 1, 1, "")
}

// Menu: список команд; #refresh виден только админам.
func Menu(isAdmin bool) string {
	lines := []string{
		"📜 *Menu Bot*",
		"• #ping",
		"• #kategori",
		"• #list [kategori] [hal]",
		"• #harga <keyword>",
		"• #detail <kode>",
		"• #beli <kode>",
		"• #buynow <kode> <jumlah> [PROMO]",
		"• #status <OrderID>",
	}
	if isAdmin {
		lines = append(lines, "• #refresh (admin)")
	}
	return strings.Join(lines, "\n")
}

// Categories: список категорий.
func Categories(cats []string) string {
	if len(cats) == 0 {
		return NoCategories
	}
	return "🗂️ *Kategori*\n• " + strings.Join(cats, "\n• ")
}

// EmptyCategory: в категории нет товаров.
func EmptyCategory(cat string) string {
	return "Tidak ada produk untuk kategori *" + cat + "*."
}

// ReloadDone: ответ на #refresh.
func ReloadDone(products, promos int) string {
	return fmt.Sprintf("✅ Reload sukses. Items: %d | Promos: %d", products, promos)
}

// ReloadFailed: ответ на #refresh, если источник недоступен.
func ReloadFailed(products, promos int) string {
	return fmt.Sprintf("⚠️ Reload gagal, data lama tetap dipakai. Items: %d | Promos: %d", products, promos)
}

// BuyLink: ссылка wa.me на продавца для ручной покупки.
func BuyLink(p domain.Product, adminContact string) string {
	contact := p.Contact
	if contact == "" {
		contact = adminContact
	}
	text := fmt.Sprintf("Halo admin, saya ingin beli %s (kode: %s).", p.Name, p.Code)
	return "Silakan order ke admin:\nhttps://wa.me/" + Digits(contact) + "?text=" + url.QueryEscape(text)
}

// PromoLine: строка о промокоде в сообщении о заказе.
func PromoLine(o domain.Order) string {
	switch {
	case o.PromoNote != "":
		return "( " + o.PromoNote + " )"
	case o.Discount > 0:
		label := o.PromoLabel
		if label == "" {
			label = o.PromoCode
		}
		return "( Promo " + label + ": -" + IDR(o.Discount) + " )"
	default:
		return ""
	}
}

// OrderCreated: сообщение с QR-платежом.
func OrderCreated(o domain.Order, c domain.Charge) string {
	lines := []string{
		"🧾 *Order dibuat!*",
		"Order ID: " + o.ID,
		fmt.Sprintf("Produk: %s x %d", o.ProductName, o.Qty),
		"Subtotal: " + IDR(o.Subtotal),
	}
	if promo := PromoLine(o); promo != "" {
		lines = append(lines, promo)
	}
	lines = append(lines,
		"Total Bayar: "+IDR(o.Total),
		"Bayar sebelum: "+DateID(o.ExpiresAt),
		"",
		"Silakan scan QRIS berikut untuk membayar.",
	)
	if c.PayURL != "" {
		lines = append(lines, "Link Checkout: "+c.PayURL)
	} else {
		lines = append(lines, "(Jika QR tidak muncul, balas: *#buynow* lagi.)")
	}
	if c.QRString != "" {
		lines = append(lines, "", "QR String:", c.QRString)
	}
	return strings.Join(lines, "\n")
}

// InvoiceFallback: сообщение, когда QR не создался и выдана ссылка на счёт.
func InvoiceFallback(o domain.Order, c domain.Charge) string {
	lines := []string{
		"⚠️ QRIS sedang bermasalah, fallback ke link:",
		c.PayURL,
		"",
		"Order ID: " + o.ID,
		fmt.Sprintf("Produk: %s x %d", o.ProductName, o.Qty),
	}
	if promo := PromoLine(o); promo != "" {
		lines = append(lines, promo)
	}
	lines = append(lines, "Total Bayar: "+IDR(o.Total))
	return strings.Join(lines, "\n")
}

// SettlementSummary: квитанция об успешной оплате.
func SettlementSummary(o domain.Order, n domain.PaymentNotification, now time.Time) string {
	payID := n.TransactionID
	if payID == "" {
		payID = "-"
	}
	product := o.ProductName
	if product == "" {
		product = dash(o.ProductCode)
	}
	buyerID := o.BuyerShortID()
	if buyerID == "" {
		buyerID = "-"
	}

	when := now
	if t, ok := GatewayTime(n.SettlementTime); ok {
		when = t
	} else if t, ok := GatewayTime(n.TransactionTime); ok {
		when = t
	}

	return strings.Join([]string{
		"╭───〔 TRANSAKSI SUKSES 〕─",
		": Pay ID : " + payID,
		": Kode Unik : " + o.ID,
		": Nama Produk : " + product,
		": ID Buyer : " + buyerID,
		": Nomor Buyer : " + Digits(o.BuyerID),
		fmt.Sprintf(": Jumlah Beli : %d", o.Qty),
		fmt.Sprintf(": Jumlah Akun didapat : %d", o.Qty),
		": Harga : " + IDR(o.UnitPrice),
		": Total Dibayar : " + IDR(o.Total),
		": Methode Pay : " + PaymentMethod(n),
		": Tanggal/Jam Transaksi : " + DateID(when),
		"╰────────────────────────",
	}, "\n")
}

// Cancelled: уведомление об отмене платежа шлюзом.
func Cancelled(status domain.TransactionStatus) string {
	return "❌ Pembayaran *" + string(status) + "*. Order dibatalkan dan stok dikembalikan."
}

// PendingStatus: статус заказа, который ещё ждёт оплату.
func PendingStatus(o domain.Order) string {
	return strings.Join([]string{
		"📦 *Status Order* " + o.ID,
		"- Status: MENUNGGU PEMBAYARAN",
		fmt.Sprintf("- Produk: %s x %d", o.ProductName, o.Qty),
		"- Nominal: " + IDR(o.Total),
		"- Batas bayar: " + DateID(o.ExpiresAt),
	}, "\n")
}

// GatewayStatus: статус транзакции по данным шлюза.
func GatewayStatus(orderID string, n domain.PaymentNotification) string {
	status := strings.ToUpper(string(n.TransactionStatus))
	if status == "" {
		status = "-"
	}
	created := "-"
	if t, ok := GatewayTime(n.TransactionTime); ok {
		created = DateID(t)
	}
	lines := []string{
		"📦 *Status Order* " + orderID,
		"- Status: " + status,
		"- Metode: " + PaymentMethod(n),
		"- Nominal: " + IDR(parseGross(n.GrossAmount)),
		"- Dibuat: " + created,
	}
	if t, ok := GatewayTime(n.SettlementTime); ok {
		lines = append(lines, "- Settled: "+DateID(t))
	}
	return strings.Join(lines, "\n")
}

// UnknownCommand: подсказка при нераспознанной команде.
func UnknownCommand(suggestions, all []string) string {
	if len(suggestions) > 0 {
		return "❌ Perintah tidak ditemukan.\nMungkin maksud Anda:\n• " + strings.Join(suggestions, "\n• ")
	}
	return "❌ Perintah tidak ditemukan.\nCoba salah satu ini:\n• " + strings.Join(all, "\n• ")
}

// LowStockItem: позиция в оповещении о низком остатке.
type LowStockItem struct {
	Code  string `json:"kode"`
	Ready int    `json:"ready"`
}

// LowStock: оповещение админов о заканчивающемся товаре.
func LowStock(items []LowStockItem) string {
	lines := []string{"⚠️ *Low Stock Alert*"}
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("• %s: ready %d", it.Code, it.Ready))
	}
	return strings.Join(lines, "\n")
}

// ReloadRequested: оповещение админов о ручной перезагрузке.
func ReloadRequested(note string) string {
	return "♻️ Reload diminta: " + note
}

func parseGross(s string) int64 {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func isHTTP(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
