package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PayTTL = 0

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	httpAddr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg := testConfig()
	cfg.HTTPAddr = httpAddr
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	waitForServer(t, "http://"+httpAddr+"/")
	resp, err := http.Get("http://" + httpAddr + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /status, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BusyHTTPPort(t *testing.T) {
	first := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg := testConfig()
	cfg.HTTPAddr = first
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Run(ctx, cfg) }()
	waitForServer(t, "http://"+first+"/")

	second := cfg
	second.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	if err := Run(context.Background(), second); err == nil {
		t.Fatal("expected listen error on busy HTTP port")
	}
}
