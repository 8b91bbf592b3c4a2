package fetcher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	greeksPath = "/api/v5/account/greeks"

	// OK-ACCESS-TIMESTAMP wants ISO-8601 UTC with millisecond precision.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Options parameterise the OKX client.
type Options struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	Passphrase string
	Simulated  bool
	Timeout    time.Duration
}

// OKX fetches the portfolio delta from the OKX account greeks endpoint.
type OKX struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	now func() time.Time
}

// NewOKX constructs an OKX delta fetcher.
func NewOKX(opts Options, logger zerolog.Logger) *OKX {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	return &OKX{
		opts:    opts,
		logger:  logger.With().Str("component", "okx_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		now:     time.Now,
	}
}

// FetchDelta performs a single signed GET for the currency's deltaPA value.
// There is no retry: a failed call is the caller's to skip.
func (c *OKX) FetchDelta(ctx context.Context, currency string) (decimal.Decimal, error) {
	ccy := strings.ToUpper(strings.TrimSpace(currency))
	if ccy == "" {
		return decimal.Decimal{}, &APIError{Message: "currency symbol required"}
	}

	requestPath := greeksPath + "?ccy=" + url.QueryEscape(ccy)
	timestamp := c.now().UTC().Format(timestampLayout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.opts.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", sign(timestamp, http.MethodGet, requestPath, c.opts.SecretKey))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.opts.Passphrase)
	if c.opts.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var payload struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			DeltaPA string `json:"deltaPA"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Decimal{}, &APIError{Message: "malformed response body: " + err.Error()}
	}

	if payload.Code != "" && payload.Code != "0" {
		return decimal.Decimal{}, &APIError{
			Message: fmt.Sprintf("exchange rejected request: code=%s msg=%s", payload.Code, payload.Msg),
		}
	}

	if len(payload.Data) == 0 {
		return decimal.Decimal{}, &APIError{Message: "response data array is empty"}
	}
	raw := payload.Data[0].DeltaPA
	if raw == "" {
		return decimal.Decimal{}, &APIError{Message: "response missing deltaPA field"}
	}

	delta, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &APIError{Message: fmt.Sprintf("non-numeric deltaPA %q", raw)}
	}

	c.logger.Debug().Str("currency", ccy).Str("delta", delta.String()).Msg("delta fetched")
	return delta, nil
}

// sign computes base64(HMAC-SHA256(timestamp + method + requestPath, secret)),
// the prehash the exchange expects for private endpoints.
func sign(timestamp, method, requestPath, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var _ DeltaFetcher = (*OKX)(nil)
