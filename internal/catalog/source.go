package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// ProductSource отдаёт полный список товаров.
type ProductSource interface {
	FetchProducts(ctx context.Context) ([]domain.Product, error)
}

// PromoSource отдаёт полный список промокодов.
type PromoSource interface {
	FetchPromos(ctx context.Context) ([]domain.Promo, error)
}

// HTTPSource читает опубликованную CSV-таблицу по URL без авторизации.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource создаёт источник. Если client == nil, используется клиент с таймаутом 30s.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{url: url, client: client}
}

func (s *HTTPSource) open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}
	return resp.Body, nil
}

// FetchProducts загружает и разбирает таблицу товаров.
func (s *HTTPSource) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	products, err := ParseProducts(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse products: %v", domain.ErrSourceUnavailable, err)
	}
	return products, nil
}

// FetchPromos загружает и разбирает таблицу промокодов.
func (s *HTTPSource) FetchPromos(ctx context.Context) ([]domain.Promo, error) {
	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	promos, err := ParsePromos(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse promos: %v", domain.ErrSourceUnavailable, err)
	}
	return promos, nil
}

// StaticSource отдаёт фиксированный список; используется, когда URL таблицы не задан.
type StaticSource struct {
	Products []domain.Product
	Promos   []domain.Promo
}

func (s StaticSource) FetchProducts(context.Context) ([]domain.Product, error) {
	return append([]domain.Product(nil), s.Products...), nil
}

func (s StaticSource) FetchPromos(context.Context) ([]domain.Promo, error) {
	return append([]domain.Promo(nil), s.Promos...), nil
}

// SampleProducts: демонстрационный каталог без внешней таблицы.
func SampleProducts(contact string) StaticSource {
	return StaticSource{Products: []domain.Product{{
		Code:    "contoh",
		Name:    "Contoh",
		Price:   10000,
		Contact: contact,
		Aliases: []string{"sample", "demo"},
	}}}
}

var (
	_ ProductSource = (*HTTPSource)(nil)
	_ PromoSource   = (*HTTPSource)(nil)
	_ ProductSource = StaticSource{}
	_ PromoSource   = StaticSource{}
)
