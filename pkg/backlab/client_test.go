package backlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backlab/internal/domain"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080")
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8080")
	}
	if c.httpClient == nil {
		t.Fatal("httpClient is nil")
	}
}

func TestStartBacktest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/backtests" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Preset != "rsi-reversion" {
			t.Errorf("preset = %q, want rsi-reversion", req.Preset)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"id": "bt-123"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	id, err := c.StartBacktest(context.Background(), RunRequest{
		Preset: "rsi-reversion",
		Config: domain.BacktestConfig{Symbol: "BTC/USD", InitialBalance: 10000},
	})
	if err != nil {
		t.Fatalf("StartBacktest: %v", err)
	}
	if id != "bt-123" {
		t.Errorf("id = %q, want bt-123", id)
	}
}

func TestRunningAndCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status":
			json.NewEncoder(w).Encode(map[string]bool{"running": true})
		case "/api/backtests/cancel":
			json.NewEncoder(w).Encode(map[string]bool{"cancelled": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	running, err := c.Running(context.Background())
	if err != nil {
		t.Fatalf("Running: %v", err)
	}
	if !running {
		t.Error("Running = false, want true")
	}

	cancelled, err := c.Cancel(context.Background())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Error("Cancel = false, want true")
	}
}

func TestErrorResponsesSurfaceMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "run not found: nope"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.GetRun(context.Background(), "nope")
	if err == nil {
		t.Fatal("GetRun should fail on 404")
	}
	if !strings.Contains(err.Error(), "run not found") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestListStrategies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/strategies" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string][]string{
			"strategies": {"macd-cross", "rsi-reversion"},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	names, err := c.ListStrategies(context.Background())
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(names) != 2 || names[0] != "macd-cross" {
		t.Errorf("ListStrategies = %v", names)
	}
}
