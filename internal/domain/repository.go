package domain

// OrderTable описывает таблицу ожидающих оплаты заказов.
type OrderTable interface {
	// Insert сохраняет новый заказ. Возвращает ErrOrderExists, если ID занят.
	Insert(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// Take атомарно извлекает заказ из таблицы; ErrOrderNotFound, если его уже нет.
	Take(id string) (Order, error)
	// ListByBuyer возвращает ожидающие заказы покупателя.
	ListByBuyer(buyerID string) ([]Order, error)
	// Len: число заказов в таблице.
	Len() int
}
