package restclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hftmaker/internal/signer"
)

func TestCancelAllSendsSignedRequest(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"retCode": 0, "retMsg": "OK"})
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := New(srv.URL, "test-api-key", signer.New("test-secret"), logger)

	c.CancelAll(context.Background(), 1700000006000, "RIVERUSDT")

	if gotHeaders.Get("X-BAPI-API-KEY") != "test-api-key" {
		t.Errorf("X-BAPI-API-KEY = %q, want test-api-key", gotHeaders.Get("X-BAPI-API-KEY"))
	}
	if gotHeaders.Get("X-BAPI-TIMESTAMP") != "1700000000000" {
		t.Errorf("X-BAPI-TIMESTAMP = %q, want 1700000000000 (backdated by 6s)", gotHeaders.Get("X-BAPI-TIMESTAMP"))
	}
	if gotHeaders.Get("X-BAPI-SIGN") == "" {
		t.Errorf("X-BAPI-SIGN header missing")
	}

	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("request body is not valid JSON: %v (%s)", err, gotBody)
	}
	if body["symbol"] != "RIVERUSDT" {
		t.Errorf("body.symbol = %v, want RIVERUSDT", body["symbol"])
	}
	if body["category"] != "linear" {
		t.Errorf("body.category = %v, want linear", body["category"])
	}
}
