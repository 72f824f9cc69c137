package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return lis
}

func waitForHTTP(t *testing.T, url string) *http.Response {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("server at %s did not start: %v", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunWithListeners_ServesAndStops(t *testing.T) {
	apiLis, metricsLis := listen(t), listen(t)
	apiURL := fmt.Sprintf("http://%s", apiLis.Addr())
	metricsURL := fmt.Sprintf("http://%s", metricsLis.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithListeners(ctx, DefaultConfig(), apiLis, metricsLis)
	}()

	resp := waitForHTTP(t, metricsURL+"/livez")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /livez 200, got %d", resp.StatusCode)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := waitForHTTP(t, metricsURL+path)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected %s 200, got %d: %s", path, resp.StatusCode, body)
		}
		if len(body) == 0 {
			t.Errorf("%s returned empty body", path)
		}
	}

	resp, err := http.Post(apiURL+"/register", "application/json",
		strings.NewReader(`{"email":"run@example.com","password":"secret"}`))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from /register, got %d", resp.StatusCode)
	}

	resp = waitForHTTP(t, apiURL+"/orders")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "mongo"
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestRunWithListeners_PortInUse(t *testing.T) {
	busy := listen(t)
	defer busy.Close()

	cfg := DefaultConfig()
	cfg.APIAddr = busy.Addr().String()
	cfg.MetricsAddr = ""

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Run(ctx, cfg); err == nil {
		t.Fatal("expected listen error for busy port")
	}
}
