package bot

// PageSize: товаров на одной странице списка.
const PageSize = 8

// Page: срез элементов для одной страницы.
type Page[T any] struct {
	Items []T
	Page  int
	Pages int
}

// Paginate режет items на страницы по per. Номер страницы зажимается в [1, pages],
// pages не меньше единицы.
func Paginate[T any](items []T, page, per int) Page[T] {
	if per <= 0 {
		per = PageSize
	}
	pages := (len(items) + per - 1) / per
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * per
	end := min(start+per, len(items))
	return Page[T]{Items: items[start:end], Page: page, Pages: pages}
}
