package domain

// ReserveRequest: запрос резерва на складе. OrderID служит ключом идемпотентности.
type ReserveRequest struct {
	OrderID     string
	ProductCode string
	Qty         int
	BuyerID     string
	Total       int64
}

// LedgerItem: одна единица выдачи (например, данные аккаунта).
type LedgerItem struct {
	Data string `json:"data"`
}

// LedgerResult: ответ склада.
type LedgerResult struct {
	OK           bool         `json:"ok"`
	Message      string       `json:"msg,omitempty"`
	Items        []LedgerItem `json:"items,omitempty"`
	AfterMessage string       `json:"after_msg,omitempty"`
}
