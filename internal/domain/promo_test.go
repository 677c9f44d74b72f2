package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func basePromo() domain.Promo {
	return domain.Promo{
		Code:      "HEMAT10",
		Type:      domain.PromoTypePercent,
		Value:     10,
		AppliesTo: []string{domain.PromoApplyAll},
		Active:    true,
	}
}

func TestPromoCheck_Order(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	candidate := domain.PromoCandidate{ProductCode: "spo3b", Qty: 2, Subtotal: 20000}

	cases := []struct {
		name string
		mut  func(p *domain.Promo)
		want domain.PromoReason
	}{
		{name: "valid", mut: func(p *domain.Promo) {}, want: domain.PromoOK},
		{
			// Неактивный промокод с истёкшим сроком должен отклоняться по первому правилу.
			name: "inactive wins over expired",
			mut: func(p *domain.Promo) {
				p.Active = false
				p.ExpiresAt = now.Add(-time.Hour)
			},
			want: domain.PromoInactive,
		},
		{
			name: "expired",
			mut:  func(p *domain.Promo) { p.ExpiresAt = now.Add(-time.Second) },
			want: domain.PromoExpired,
		},
		{
			name: "expires later",
			mut:  func(p *domain.Promo) { p.ExpiresAt = now.Add(time.Hour) },
			want: domain.PromoOK,
		},
		{
			name: "quota exhausted",
			mut: func(p *domain.Promo) {
				p.Quota = 5
				p.Used = 5
				p.MinQty = 10
			},
			want: domain.PromoQuota,
		},
		{
			name: "min qty",
			mut: func(p *domain.Promo) {
				p.MinQty = 3
				p.MinAmount = 1_000_000
			},
			want: domain.PromoMinQty,
		},
		{
			name: "min amount",
			mut:  func(p *domain.Promo) { p.MinAmount = 25000 },
			want: domain.PromoMinAmount,
		},
		{
			name: "not applicable",
			mut:  func(p *domain.Promo) { p.AppliesTo = []string{"netflix"} },
			want: domain.PromoNotApplies,
		},
		{
			name: "applicable by code",
			mut:  func(p *domain.Promo) { p.AppliesTo = []string{"netflix", "spo3b"} },
			want: domain.PromoOK,
		},
		{
			name: "unknown type",
			mut:  func(p *domain.Promo) { p.Type = "cashback" },
			want: domain.PromoBadType,
		},
		{
			name: "zero value",
			mut:  func(p *domain.Promo) { p.Value = 0 },
			want: domain.PromoBadValue,
		},
		{
			name: "nan value",
			mut:  func(p *domain.Promo) { p.Value = math.NaN() },
			want: domain.PromoBadValue,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			promo := basePromo()
			tc.mut(&promo)
			if got := promo.Check(candidate, now); got != tc.want {
				t.Fatalf("Check() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPromoDiscount(t *testing.T) {
	cases := []struct {
		name     string
		typ      domain.PromoType
		value    float64
		subtotal int64
		want     int64
	}{
		{name: "percent floors", typ: domain.PromoTypePercent, value: 15, subtotal: 9999, want: 1499},
		{name: "percent over 100 clamps", typ: domain.PromoTypePercent, value: 150, subtotal: 10000, want: 10000},
		{name: "nominal floors", typ: domain.PromoTypeNominal, value: 2500.9, subtotal: 10000, want: 2500},
		{name: "nominal clamps", typ: domain.PromoTypeNominal, value: 50000, subtotal: 10000, want: 10000},
		{name: "negative value", typ: domain.PromoTypeNominal, value: -10, subtotal: 10000, want: 0},
		{name: "zero subtotal", typ: domain.PromoTypePercent, value: 50, subtotal: 0, want: 0},
		{name: "unknown type", typ: "bogus", value: 50, subtotal: 1000, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			promo := domain.Promo{Type: tc.typ, Value: tc.value}
			if got := promo.Discount(tc.subtotal); got != tc.want {
				t.Fatalf("Discount(%d) = %d, want %d", tc.subtotal, got, tc.want)
			}
		})
	}
}

func TestPromoDiscount_NeverExceedsSubtotal(t *testing.T) {
	values := []float64{0.5, 1, 9.99, 33.3, 99.9, 100, 101, 1e6}
	subtotals := []int64{1, 7, 999, 10000, 123456789}

	for _, typ := range []domain.PromoType{domain.PromoTypePercent, domain.PromoTypeNominal} {
		for _, v := range values {
			for _, s := range subtotals {
				d := domain.Promo{Type: typ, Value: v}.Discount(s)
				if d < 0 || d > s {
					t.Fatalf("%s %.2f on %d: discount %d out of range", typ, v, s, d)
				}
			}
		}
	}
}
