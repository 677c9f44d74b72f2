package domain

// TransactionStatus: статус транзакции платёжного шлюза.
type TransactionStatus string

const (
	TransactionSettlement TransactionStatus = "settlement"
	TransactionCapture    TransactionStatus = "capture"
	TransactionExpire     TransactionStatus = "expire"
	TransactionCancel     TransactionStatus = "cancel"
	TransactionDeny       TransactionStatus = "deny"
	TransactionPending    TransactionStatus = "pending"
)

// IsSuccess: оплата прошла.
func (s TransactionStatus) IsSuccess() bool {
	return s == TransactionSettlement || s == TransactionCapture
}

// IsTerminalFailure: оплата окончательно не состоится.
func (s TransactionStatus) IsTerminalFailure() bool {
	switch s {
	case TransactionExpire, TransactionCancel, TransactionDeny:
		return true
	default:
		return false
	}
}

// PaymentNotification: входящий вебхук шлюза.
type PaymentNotification struct {
	OrderID           string            `json:"order_id"`
	TransactionStatus TransactionStatus `json:"transaction_status"`
	StatusCode        string            `json:"status_code"`
	GrossAmount       string            `json:"gross_amount"`
	SignatureKey      string            `json:"signature_key"`
	PaymentType       string            `json:"payment_type,omitempty"`
	TransactionID     string            `json:"transaction_id,omitempty"`
	TransactionTime   string            `json:"transaction_time,omitempty"`
	SettlementTime    string            `json:"settlement_time,omitempty"`
	Issuer            string            `json:"issuer,omitempty"`
	Acquirer          string            `json:"acquirer,omitempty"`
	Store             string            `json:"store,omitempty"`
	PermataVANumber   string            `json:"permata_va_number,omitempty"`
	VANumbers         []VANumber        `json:"va_numbers,omitempty"`
}

// VANumber: номер виртуального счёта банка.
type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// PaymentAction: действие из ответа на QR-платёж (ссылка или deeplink).
type PaymentAction struct {
	Name   string `json:"name"`
	Method string `json:"method,omitempty"`
	URL    string `json:"url"`
}

// Charge описывает созданный платёж: QR либо ссылку на счёт.
type Charge struct {
	// QRString заполнен для QR-платежа.
	QRString string
	PayURL   string
	// Token заполнен для redirect-счёта.
	Token    string
	Fallback bool
}
