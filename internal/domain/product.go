package domain

// Product: строка каталога. Снимок неизменяем в пределах одного цикла обновления.
type Product struct {
	Code        string
	Name        string
	Price       int64
	OldPrice    int64
	Description string
	Category    string
	Icon        string
	// Contact: номер продавца для ручной покупки (#beli).
	Contact string
	// Stock: остаток как его отдаёт таблица; пустая строка означает «неизвестно».
	Stock   string
	Sold    string
	Total   string
	Aliases []string
}

// Label возвращает человекочитаемое имя для счетов и сообщений.
func (p Product) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Code
}
