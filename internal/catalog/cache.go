// Package catalog держит в памяти снимок товаров и промокодов из внешней таблицы.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// DefaultTTL: сколько живёт снимок до следующей загрузки.
const DefaultTTL = 5 * time.Minute

// Part выбирает, какие таблицы перезагружать.
type Part int

const (
	PartProducts Part = 1 << iota
	PartPromos
	PartAll = PartProducts | PartPromos
)

// Stats: размеры текущего снимка.
type Stats struct {
	Products   int
	Promos     int
	ProductsAt time.Time
	PromosAt   time.Time
}

// Cache: потокобезопасный кэш каталога.
type Cache struct {
	products ProductSource
	promos   PromoSource
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Entry
	group    singleflight.Group

	mu         sync.RWMutex
	snap       *snapshot
	promoIndex map[string]domain.Promo
	productsAt time.Time
	promosAt   time.Time
}

// Option настраивает Cache.
type Option func(*Cache)

// WithTTL задаёт время жизни снимка.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPromoSource включает промокоды. Без него промокоды отключены.
func WithPromoSource(src PromoSource) Option {
	return func(c *Cache) {
		c.promos = src
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache создаёт пустой кэш; данные появятся после первого Refresh.
func NewCache(products ProductSource, opts ...Option) *Cache {
	c := &Cache{
		products:   products,
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     log.WithField("component", "catalog"),
		snap:       buildSnapshot(nil),
		promoIndex: map[string]domain.Promo{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PromosEnabled сообщает, подключён ли источник промокодов.
func (c *Cache) PromosEnabled() bool {
	return c.promos != nil
}

// Refresh загружает устаревшие части каталога (или все, если force).
// При ошибке источника прежний снимок остаётся в силе, а ошибка оборачивает ErrSourceUnavailable.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	if force {
		return c.Reload(ctx, PartAll)
	}

	now := c.now()
	c.mu.RLock()
	var parts Part
	if c.productsAt.IsZero() || now.Sub(c.productsAt) >= c.ttl {
		parts |= PartProducts
	}
	if c.promos != nil && (c.promosAt.IsZero() || now.Sub(c.promosAt) >= c.ttl) {
		parts |= PartPromos
	}
	c.mu.RUnlock()

	if parts == 0 {
		return nil
	}
	return c.Reload(ctx, parts)
}

// Reload принудительно загружает выбранные части. Конкурентные вызовы с теми же
// частями схлопываются в одну загрузку.
func (c *Cache) Reload(ctx context.Context, parts Part) error {
	if c.promos == nil {
		parts &^= PartPromos
	}
	if parts == 0 {
		return nil
	}

	_, err, _ := c.group.Do(fmt.Sprintf("reload:%d", parts), func() (interface{}, error) {
		return nil, c.reload(ctx, parts)
	})
	return err
}

func (c *Cache) reload(ctx context.Context, parts Part) error {
	var (
		g          errgroup.Group
		products   []domain.Product
		promos     []domain.Promo
		productErr error
		promoErr   error
	)

	if parts&PartProducts != 0 {
		g.Go(func() error {
			products, productErr = c.products.FetchProducts(ctx)
			return productErr
		})
	}
	if parts&PartPromos != 0 {
		g.Go(func() error {
			promos, promoErr = c.promos.FetchPromos(ctx)
			return promoErr
		})
	}
	// Ошибки собираем по отдельности: неудача одной таблицы не отменяет другую.
	_ = g.Wait()

	now := c.now()
	var errs []error

	if parts&PartProducts != 0 {
		if productErr != nil {
			c.logger.WithError(productErr).Warn("product source unavailable, serving stale snapshot")
			errs = append(errs, wrapSource("products", productErr))
		} else {
			snap := buildSnapshot(products)
			for _, col := range snap.collisions {
				c.logger.WithFields(log.Fields{
					"key":     col.Key,
					"kind":    col.Kind,
					"kept":    col.Kept,
					"dropped": col.Dropped,
				}).Warn("catalog key collision, first row wins")
			}
			c.mu.Lock()
			c.snap = snap
			c.productsAt = now
			c.mu.Unlock()
			c.logger.WithField("products", len(products)).Info("product catalog refreshed")
		}
	}

	if parts&PartPromos != 0 {
		if promoErr != nil {
			c.logger.WithError(promoErr).Warn("promo source unavailable, serving stale snapshot")
			errs = append(errs, wrapSource("promos", promoErr))
		} else {
			index := make(map[string]domain.Promo, len(promos))
			for _, p := range promos {
				if _, dup := index[p.Code]; dup {
					continue
				}
				index[p.Code] = p
			}
			c.mu.Lock()
			c.promoIndex = index
			c.promosAt = now
			c.mu.Unlock()
			c.logger.WithField("promos", len(index)).Info("promo catalog refreshed")
		}
	}

	return errors.Join(errs...)
}

func wrapSource(part string, err error) error {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return fmt.Errorf("%s: %w", part, err)
	}
	return fmt.Errorf("%s: %w: %v", part, domain.ErrSourceUnavailable, err)
}

func (c *Cache) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// LookupByCode ищет товар по коду, затем по алиасам. Регистр, диакритика и
// пунктуация не учитываются.
func (c *Cache) LookupByCode(code string) (domain.Product, bool) {
	return c.current().lookup(code)
}

// Search возвращает товары, у которых имя, описание, код, категория или алиас
// содержат нормализованный запрос.
func (c *Cache) Search(query string) []domain.Product {
	return c.current().search(query)
}

// Categories: отсортированный список непустых категорий.
func (c *Cache) Categories() []string {
	cats := c.current().categories
	return append([]string(nil), cats...)
}

// Category возвращает каноническое имя категории, если такая есть.
func (c *Cache) Category(name string) (string, bool) {
	return c.current().hasCategory(name)
}

// ByCategory возвращает товары категории.
func (c *Cache) ByCategory(category string) []domain.Product {
	return c.current().byCategory(category)
}

// Products возвращает копию всех товаров в порядке таблицы.
func (c *Cache) Products() []domain.Product {
	return append([]domain.Product(nil), c.current().products...)
}

// HasToken проверяет слово по индексу токенов для эвристики распознавания запросов.
func (c *Cache) HasToken(token string) bool {
	_, ok := c.current().tokens[token]
	return ok
}

// Collisions: конфликты ключей в текущем снимке.
func (c *Cache) Collisions() []Collision {
	return append([]Collision(nil), c.current().collisions...)
}

// Promo ищет промокод без учёта регистра.
func (c *Cache) Promo(code string) (domain.Promo, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Promo{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.promoIndex[code]
	return p, ok
}

// Stats возвращает размеры снимка.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Products:   len(c.snap.products),
		Promos:     len(c.promoIndex),
		ProductsAt: c.productsAt,
		PromosAt:   c.promosAt,
	}
}

// Ready: загружен ли хотя бы один снимок товаров.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.productsAt.IsZero()
}

var _ domain.CatalogReader = (*Cache)(nil)
