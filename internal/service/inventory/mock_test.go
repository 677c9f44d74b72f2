package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func TestMockService(t *testing.T) {
	mock := NewMockService()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}
	ctx := context.Background()

	if _, err := mock.Reserve(ctx, domain.ReserveRequest{OrderID: "o-1", ProductCode: "spo3b", Qty: 1}); err != nil {
		t.Fatalf("unexpected reserve error: %v", err)
	}
	res, err := mock.Finalize(ctx, "o-1", 1000)
	if err != nil || !res.OK || len(res.Items) != 1 {
		t.Fatalf("unexpected finalize result: %+v, %v", res, err)
	}
	if err := mock.Release(ctx, "o-1"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if r, f, rel := mock.Calls(); r != 1 || f != 1 || rel != 1 {
		t.Fatalf("unexpected call counters: reserve=%d finalize=%d release=%d", r, f, rel)
	}

	mock.ReserveErr = domain.ErrInsufficientStock
	mock.SetFinalizeErr(errors.New("finalize failed"))
	mock.ReleaseErr = errors.New("release failed")
	if _, err := mock.Reserve(ctx, domain.ReserveRequest{OrderID: "o-2"}); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := mock.Finalize(ctx, "o-2", 1); err == nil {
		t.Fatal("expected finalize error")
	}
	if err := mock.Release(ctx, "o-2"); err == nil {
		t.Fatal("expected release error")
	}
}

func TestNoopService(t *testing.T) {
	var svc NoopService
	ctx := context.Background()
	if res, err := svc.Reserve(ctx, domain.ReserveRequest{}); err != nil || !res.OK {
		t.Fatalf("unexpected reserve: %+v %v", res, err)
	}
	if res, err := svc.Finalize(ctx, "o", 1); err != nil || !res.OK {
		t.Fatalf("unexpected finalize: %+v %v", res, err)
	}
	if err := svc.Release(ctx, "o"); err != nil {
		t.Fatalf("unexpected release: %v", err)
	}
}
