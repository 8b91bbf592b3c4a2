package fetcher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(t *testing.T, srvURL string) *OKX {
	t.Helper()
	c := NewOKX(Options{
		BaseURL:    srvURL,
		APIKey:     "key-id",
		SecretKey:  "topsecret",
		Passphrase: "pass",
		Timeout:    time.Second,
	}, noopLogger())
	c.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	}
	return c
}

func greeksBody(delta string) map[string]any {
	return map[string]any{
		"code": "0",
		"msg":  "",
		"data": []map[string]string{{"deltaPA": delta, "thetaPA": "0.01"}},
	}
}

func TestFetchDeltaSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/account/greeks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ccy") != "BTC" {
			t.Errorf("unexpected ccy %q", r.URL.Query().Get("ccy"))
		}
		_ = json.NewEncoder(w).Encode(greeksBody("-7.25"))
	}))
	defer srv.Close()

	delta, err := newTestClient(t, srv.URL).FetchDelta(context.Background(), "btc")
	if err != nil {
		t.Fatalf("FetchDelta returned error: %v", err)
	}
	if !delta.Equal(decimal.RequireFromString("-7.25")) {
		t.Fatalf("delta = %s, want -7.25", delta)
	}
}

func TestFetchDeltaSignedHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(greeksBody("1"))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).FetchDelta(context.Background(), "BTC"); err != nil {
		t.Fatalf("FetchDelta returned error: %v", err)
	}

	wantTS := "2024-03-01T12:30:45.123Z"
	if ts := got.Get("OK-ACCESS-TIMESTAMP"); ts != wantTS {
		t.Errorf("timestamp header = %q, want %q", ts, wantTS)
	}
	if key := got.Get("OK-ACCESS-KEY"); key != "key-id" {
		t.Errorf("key header = %q", key)
	}
	if pass := got.Get("OK-ACCESS-PASSPHRASE"); pass != "pass" {
		t.Errorf("passphrase header = %q", pass)
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(wantTS + "GET" + "/api/v5/account/greeks?ccy=BTC"))
	wantSign := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if sig := got.Get("OK-ACCESS-SIGN"); sig != wantSign {
		t.Errorf("signature header = %q, want %q", sig, wantSign)
	}
	if got.Get("x-simulated-trading") != "" {
		t.Error("simulated-trading header should be absent by default")
	}
}

func TestFetchDeltaSimulatedHeader(t *testing.T) {
	var flag string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flag = r.Header.Get("x-simulated-trading")
		_ = json.NewEncoder(w).Encode(greeksBody("1"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.opts.Simulated = true
	if _, err := c.FetchDelta(context.Background(), "BTC"); err != nil {
		t.Fatalf("FetchDelta returned error: %v", err)
	}
	if flag != "1" {
		t.Errorf("x-simulated-trading = %q, want 1", flag)
	}
}

func TestFetchDeltaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchDelta(context.Background(), "BTC")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestFetchDeltaMalformed(t *testing.T) {
	cases := map[string]any{
		"empty data":     map[string]any{"code": "0", "data": []any{}},
		"missing field":  map[string]any{"code": "0", "data": []map[string]string{{"thetaPA": "1"}}},
		"non-numeric":    greeksBody("not-a-number"),
		"exchange error": map[string]any{"code": "50111", "msg": "invalid key", "data": []any{}},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).FetchDelta(context.Background(), "BTC")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("want *APIError, got %v", err)
			}
		})
	}
}

func TestFetchDeltaEmptyCurrency(t *testing.T) {
	if _, err := newTestClient(t, "http://127.0.0.1:0").FetchDelta(context.Background(), " "); err == nil {
		t.Fatal("empty currency should be rejected")
	}
}
