package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// WIB: часовой пояс Джакарты; даты без зоны в таблице промо трактуются в нём.
var WIB = time.FixedZone("WIB", 7*60*60)

var (
	productColumns = map[string][]string{
		"name":        {"nama", "name"},
		"price":       {"harga", "price"},
		"icon":        {"ikon", "icon", "image", "gambar"},
		"description": {"deskripsi", "description", "desc"},
		"category":    {"kategori", "category"},
		"contact":     {"wa", "contact", "kontak"},
		"old_price":   {"harga_lama", "old_price"},
		"stock":       {"stok", "stock"},
		"code":        {"kode", "code"},
		"alias":       {"alias", "aliases"},
		"sold":        {"terjual", "sold"},
		"total":       {"total"},
	}
	promoColumns = map[string][]string{
		"code":       {"code", "kode"},
		"type":       {"type", "jenis"},
		"value":      {"value", "nilai"},
		"applies":    {"applies_to", "applies"},
		"min_qty":    {"min_qty", "minqty"},
		"min_amount": {"min_amount", "min"},
		"quota":      {"quota", "kuota"},
		"used":       {"used", "terpakai"},
		"expires":    {"expires_at", "expired"},
		"active":     {"active", "aktif"},
		"label":      {"label"},
	}
)

var errMissingHeader = errors.New("missing required column")

type row struct {
	cells []string
	index map[string]int
}

func (r row) get(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func readTable(src io.Reader, columns map[string][]string, required ...string) ([]row, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	lookup := make(map[string]int, len(header))
	for i, h := range header {
		lookup[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	index := make(map[string]int, len(columns))
	for field, names := range columns {
		for _, n := range names {
			if i, ok := lookup[n]; ok {
				index[field] = i
				break
			}
		}
	}
	for _, field := range required {
		if _, ok := index[field]; !ok {
			return nil, fmt.Errorf("%w: %s", errMissingHeader, field)
		}
	}

	var rows []row
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, row{cells: cells, index: index})
	}
	return rows, nil
}

// ParseProducts разбирает CSV товаров. Строки без имени или кода пропускаются.
func ParseProducts(src io.Reader) ([]domain.Product, error) {
	rows, err := readTable(src, productColumns, "name", "code")
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		name, code := r.get("name"), r.get("code")
		if name == "" || code == "" {
			continue
		}
		products = append(products, domain.Product{
			Code:        code,
			Name:        name,
			Price:       parseAmount(r.get("price")),
			OldPrice:    parseAmount(r.get("old_price")),
			Description: r.get("description"),
			Category:    r.get("category"),
			Icon:        r.get("icon"),
			Contact:     r.get("contact"),
			Stock:       r.get("stock"),
			Sold:        r.get("sold"),
			Total:       r.get("total"),
			Aliases:     SplitAliases(r.get("alias")),
		})
	}
	return products, nil
}

// ParsePromos разбирает CSV промокодов. Коды приводятся к верхнему регистру.
func ParsePromos(src io.Reader) ([]domain.Promo, error) {
	rows, err := readTable(src, promoColumns, "code")
	if err != nil {
		return nil, err
	}

	promos := make([]domain.Promo, 0, len(rows))
	for _, r := range rows {
		code := strings.ToUpper(r.get("code"))
		if code == "" {
			continue
		}
		typ := domain.PromoType(strings.ToLower(r.get("type")))
		promos = append(promos, domain.Promo{
			Code:      code,
			Type:      typ,
			Value:     parsePromoValue(typ, r.get("value")),
			AppliesTo: parseApplies(r.get("applies")),
			MinQty:    int(parseAmount(r.get("min_qty"))),
			MinAmount: parseAmount(r.get("min_amount")),
			Quota:     int(parseAmount(r.get("quota"))),
			Used:      int(parseAmount(r.get("used"))),
			ExpiresAt: parseExpiry(r.get("expires")),
			Active:    parseActive(r.get("active")),
			Label:     r.get("label"),
		})
	}
	return promos, nil
}

// parseAmount читает целую сумму из ячеек вида "Rp 10.000" или "10,000".
func parseAmount(cell string) int64 {
	var b strings.Builder
	for _, r := range cell {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// thousandsPattern: сумма с разделителями тысяч ("10.000", "Rp 1,500,000").
var thousandsPattern = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)

// parsePromoValue читает значение промокода. Номинал в рупиях часто пишут с
// разделителями тысяч, и "10.000" означает десять тысяч, а не десять.
func parsePromoValue(typ domain.PromoType, cell string) float64 {
	if typ != domain.PromoTypeNominal {
		return parseFloat(cell)
	}
	cell = strings.TrimSpace(cell)
	cell = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(cell, "Rp"), "."))
	if thousandsPattern.MatchString(cell) {
		return float64(parseAmount(cell))
	}
	return parseFloat(cell)
}

func parseFloat(cell string) float64 {
	cell = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell), "%"))
	cell = strings.ReplaceAll(cell, ",", ".")
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseApplies(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if code := NormalizeCode(p); code != "" {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return []string{domain.PromoApplyAll}
	}
	return out
}

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseExpiry(cell string) time.Time {
	if cell == "" {
		return time.Time{}
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, cell, WIB); err == nil {
			if layout == "2006-01-02" || layout == "02/01/2006" {
				// Дата без времени действует до конца дня.
				t = t.Add(24*time.Hour - time.Second)
			}
			return t
		}
	}
	return time.Time{}
}

func parseActive(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "false", "0", "no", "n", "off", "tidak", "nonaktif":
		return false
	default:
		return true
	}
}
