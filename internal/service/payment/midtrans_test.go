package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func newTestMidtrans(t *testing.T, handler http.HandlerFunc) *Midtrans {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMidtrans(Config{
		ServerKey:   "SB-Mid-server-key",
		FinishURL:   "https://shop.example/pay/finish",
		CoreBaseURL: srv.URL,
		SnapBaseURL: srv.URL,
		HTTPClient:  srv.Client(),
	})
}

func TestMidtrans_CreateQRCharge(t *testing.T) {
	client := newTestMidtrans(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/charge", r.URL.Path)
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("SB-Mid-server-key:"))
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		var body chargeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qris", body.PaymentType)
		assert.Equal(t, "PBS-1", body.TransactionDetails.OrderID)
		assert.Equal(t, int64(50000), body.TransactionDetails.GrossAmount)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code": "201",
			"qr_string":   "000201010212",
			"actions": []map[string]string{
				{"name": "generate-qr-code", "url": "https://qr"},
				{"name": "deeplink-redirect", "url": "https://deeplink"},
			},
		})
	})

	charge, err := client.CreateQRCharge(context.Background(), "PBS-1", 50000)
	require.NoError(t, err)
	assert.Equal(t, "000201010212", charge.QRString)
	assert.Equal(t, "https://deeplink", charge.PayURL)
	assert.False(t, charge.Fallback)
}

func TestMidtrans_CreateQRChargeErrorInBody(t *testing.T) {
	client := newTestMidtrans(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code":    "402",
			"status_message": "Payment channel is not activated.",
		})
	})

	_, err := client.CreateQRCharge(context.Background(), "PBS-1", 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestMidtrans_CreateInvoice(t *testing.T) {
	client := newTestMidtrans(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		callbacks, _ := body["callbacks"].(map[string]any)
		assert.Equal(t, "https://shop.example/pay/finish", callbacks["finish"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "redirect_url": "https://app.sandbox.midtrans.com/snap/v4/redirection/tok"})
	})

	charge, err := client.CreateInvoice(context.Background(), domain.InvoiceRequest{
		OrderID: "PBS-2", Amount: 25000, BuyerPhone: "6281", ProductLabel: "Spotify x1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", charge.Token)
	assert.True(t, charge.Fallback)
	assert.Contains(t, charge.PayURL, "redirection/tok")
}

func TestMidtrans_HTTPErrorWraps(t *testing.T) {
	client := newTestMidtrans(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_messages":["Access denied"]}`))
	})

	_, err := client.CreateInvoice(context.Background(), domain.InvoiceRequest{OrderID: "PBS-3", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestMidtrans_Status(t *testing.T) {
	client := newTestMidtrans(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/PBS-4/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id":           "PBS-4",
			"transaction_status": "pending",
			"status_code":        "201",
			"gross_amount":       "10000.00",
			"payment_type":       "qris",
		})
	})

	st, err := client.Status(context.Background(), "PBS-4")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, st.TransactionStatus)
	assert.Equal(t, "qris", st.PaymentType)
}

func TestPickPayURL(t *testing.T) {
	tests := []struct {
		name    string
		actions []domain.PaymentAction
		want    string
	}{
		{name: "empty", actions: nil, want: ""},
		{
			name: "desktop preferred",
			actions: []domain.PaymentAction{
				{Name: "deeplink-redirect", URL: "d"},
				{Name: "mobile-web", URL: "m"},
				{Name: "desktop-web", URL: "w"},
			},
			want: "w",
		},
		{
			name: "mobile over deeplink",
			actions: []domain.PaymentAction{
				{Name: "deeplink-redirect", URL: "d"},
				{Name: "mobile", URL: "m"},
			},
			want: "m",
		},
		{name: "first otherwise", actions: []domain.PaymentAction{{Name: "generate-qr-code", URL: "q"}}, want: "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickPayURL(tt.actions))
		})
	}
}

func TestNewMidtrans_Hosts(t *testing.T) {
	sandbox := NewMidtrans(Config{ServerKey: "k"})
	assert.Equal(t, coreSandboxURL, sandbox.coreURL)
	assert.Equal(t, snapSandboxURL, sandbox.snapURL)

	prod := NewMidtrans(Config{ServerKey: "k", Production: true})
	assert.Equal(t, coreProductionURL, prod.coreURL)
	assert.Equal(t, snapProductionURL, prod.snapURL)
}
