package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/render"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

const (
	maxSearchResults = 6
	maxSuggestions   = 4
)

func (r *Router) menu(_ context.Context, req request) (string, error) {
	return render.Menu(r.IsAdmin(req.Message)), nil
}

func (r *Router) ping(context.Context, request) (string, error) {
	return render.Pong, nil
}

func (r *Router) refresh(ctx context.Context, req request) (string, error) {
	if !r.IsAdmin(req.Message) {
		return render.AdminOnly, fmt.Errorf("%w: %s is not an admin", domain.ErrValidation, req.From)
	}

	err := r.catalog.Reload(ctx, catalog.PartAll)
	stats := r.catalog.Stats()
	if r.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		r.metrics.RecordCatalogReload(result)
	}
	if err != nil {
		return render.ReloadFailed(stats.Products, stats.Promos), err
	}
	return render.ReloadDone(stats.Products, stats.Promos), nil
}

func (r *Router) categories(ctx context.Context, _ request) (string, error) {
	r.refreshCatalog(ctx)
	return render.Categories(r.catalog.Categories()), nil
}

// list: "#list", "#list 2", "#list streaming", "#list streaming 2".
func (r *Router) list(ctx context.Context, req request) (string, error) {
	r.refreshCatalog(ctx)

	category, page := req.args, 1
	if n := len(category); n > 0 {
		if p, err := strconv.Atoi(category[n-1]); err == nil {
			page = p
			category = category[:n-1]
		}
	}
	cat := strings.Join(category, " ")

	items := r.catalog.Products()
	if cat != "" {
		items = filterCategory(items, cat)
	}
	if len(items) == 0 {
		if cat != "" {
			return render.EmptyCategory(cat), fmt.Errorf("%w: category %q", domain.ErrProductNotFound, cat)
		}
		return render.NoProducts, domain.ErrProductNotFound
	}

	next := "#list"
	if cat != "" {
		next += " " + cat
	}
	pg := Paginate(items, page, PageSize)
	return render.ProductPage(r.adminContact, pg.Items, pg.Page, pg.Pages, next), nil
}

func (r *Router) search(ctx context.Context, req request) (string, error) {
	if req.raw == "" {
		return usage(render.UsageSearch)
	}
	r.refreshCatalog(ctx)

	found := r.catalog.Search(req.raw)
	if len(found) == 0 {
		return render.SearchNotFound, fmt.Errorf("%w: %q", domain.ErrProductNotFound, req.raw)
	}
	if len(found) > maxSearchResults {
		found = found[:maxSearchResults]
	}
	return render.ProductList(r.adminContact, found), nil
}

func (r *Router) detail(ctx context.Context, req request) (string, error) {
	if len(req.args) == 0 {
		return usage(render.UsageDetail)
	}
	r.refreshCatalog(ctx)

	p, ok := r.catalog.LookupByCode(req.args[0])
	if !ok {
		return render.CodeNotFound, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.args[0])
	}
	return render.ProductDetail(p, r.adminContact, r.showImage), nil
}

func (r *Router) buyLink(ctx context.Context, req request) (string, error) {
	if len(req.args) == 0 {
		return usage(render.UsageBeli)
	}
	r.refreshCatalog(ctx)

	p, ok := r.catalog.LookupByCode(req.args[0])
	if !ok {
		return render.CodeNotFound, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.args[0])
	}
	return render.BuyLink(p, r.adminContact), nil
}

// buyNow: "#buynow <kode> [jumlah] [PROMO]". Если второй аргумент не число, это промокод.
func (r *Router) buyNow(ctx context.Context, req request) (string, error) {
	purchase, err := parsePurchase(req)
	if err != nil {
		return usage(render.UsageBuyNow)
	}
	r.refreshCatalog(ctx)

	res, err := r.orders.Create(ctx, purchase)
	if err != nil {
		return buyerReply(err), err
	}
	if res.Charge.Fallback {
		return render.InvoiceFallback(res.Order, res.Charge), nil
	}
	return render.OrderCreated(res.Order, res.Charge), nil
}

// MaxPurchaseQty: верхняя граница количества в одной команде покупки.
const MaxPurchaseQty = 1000

func parsePurchase(req request) (saga.PurchaseRequest, error) {
	if len(req.args) == 0 {
		return saga.PurchaseRequest{}, domain.ErrProductCodeRequired
	}
	p := saga.PurchaseRequest{
		BuyerID:     req.From,
		BuyerPhone:  render.Digits(req.From),
		ProductCode: req.args[0],
		Qty:         1,
	}

	rest := req.args[1:]
	if len(rest) > 0 {
		if qty, err := strconv.Atoi(rest[0]); err == nil {
			if qty < 0 || qty > MaxPurchaseQty {
				return saga.PurchaseRequest{}, domain.ErrQtyInvalid
			}
			if qty > 0 {
				p.Qty = qty
			}
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		p.PromoCode = strings.ToUpper(rest[0])
	}
	return p, nil
}

// orderStatus: локальный ожидающий заказ, иначе статус из шлюза.
// Без аргумента показывает ожидающие заказы отправителя.
func (r *Router) orderStatus(ctx context.Context, req request) (string, error) {
	if len(req.args) == 0 {
		pending, err := r.orders.PendingByBuyer(req.From)
		if err != nil || len(pending) == 0 {
			return usage(render.UsageStatus)
		}
		parts := make([]string, 0, len(pending))
		for _, o := range pending {
			parts = append(parts, render.PendingStatus(o))
		}
		return strings.Join(parts, "\n\n"), nil
	}

	orderID := req.args[0]
	if order, err := r.orders.Get(orderID); err == nil {
		return render.PendingStatus(order), nil
	}
	if r.status == nil {
		return render.StatusNotFound, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	n, err := r.status.Status(ctx, orderID)
	if err != nil {
		return render.StatusNotFound, err
	}
	return render.GatewayStatus(orderID, n), nil
}

func (r *Router) unknown(_ context.Context, req request) (string, error) {
	needle := strings.TrimLeft(req.name, commandPrefix)
	var suggestions []string
	for _, name := range r.names {
		if strings.Contains(name, needle) {
			suggestions = append(suggestions, name)
			if len(suggestions) == maxSuggestions {
				break
			}
		}
	}
	return render.UnknownCommand(suggestions, r.names), fmt.Errorf("%w: %s", domain.ErrUnknownCommand, req.name)
}

// query отвечает на текст без префикса: точный код, категория, затем поиск.
func (r *Router) query(ctx context.Context, msg Message) (string, error) {
	r.refreshCatalog(ctx)

	q, page := CleanQuery(msg.Text)
	if p, ok := r.catalog.LookupByCode(q); ok {
		return render.ProductDetail(p, r.adminContact, r.showImage), nil
	}

	needle := catalog.Normalize(q)
	for _, cat := range r.catalog.Categories() {
		if needle == "" || !strings.Contains(catalog.Normalize(cat), needle) {
			continue
		}
		items := filterCategory(r.catalog.Products(), cat)
		if len(items) == 0 {
			return render.EmptyCategory(cat), fmt.Errorf("%w: category %q", domain.ErrProductNotFound, cat)
		}
		pg := Paginate(items, page, PageSize)
		return render.ProductPage(r.adminContact, pg.Items, pg.Page, pg.Pages, cat), nil
	}

	found := r.catalog.Search(q)
	switch len(found) {
	case 0:
		return render.QueryNotFound, fmt.Errorf("%w: %q", domain.ErrProductNotFound, q)
	case 1:
		return render.ProductDetail(found[0], r.adminContact, r.showImage), nil
	}
	pg := Paginate(found, page, PageSize)
	return render.ProductPage(r.adminContact, pg.Items, pg.Page, pg.Pages, q), nil
}

// filterCategory оставляет товары, чья категория содержит cat.
func filterCategory(items []domain.Product, cat string) []domain.Product {
	want := catalog.Normalize(cat)
	var out []domain.Product
	for _, p := range items {
		if strings.Contains(catalog.Normalize(p.Category), want) {
			out = append(out, p)
		}
	}
	return out
}
