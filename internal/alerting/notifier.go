package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"delta-guard/internal/procctl"
)

// Alert carries the context of a triggered remediation.
type Alert struct {
	At       time.Time
	Currency string
	Delta    decimal.Decimal
	Bound    decimal.Decimal
	Held     time.Duration
	Process  string
	Killed   []procctl.Result
}

// Notifier delivers an alert message, best-effort.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the rendered alert text via sendMessage. Any transport or API
// failure is returned to the caller; delivery is never retried here.
func (n *TelegramNotifier) Notify(ctx context.Context, alert Alert) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(alert),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Info().Str("currency", alert.Currency).
		Str("delta", alert.Delta.String()).
		Msg("alert delivered")
	return nil
}

func renderMessage(alert Alert) string {
	builder := strings.Builder{}
	builder.WriteString("[delta-guard] sustained delta violation\n")
	builder.WriteString(fmt.Sprintf("Currency: %s\n", alert.Currency))
	builder.WriteString(fmt.Sprintf("Delta: %s (bound %s)\n", alert.Delta.String(), alert.Bound.String()))
	builder.WriteString(fmt.Sprintf("Out of band for: %s\n", alert.Held))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", alert.At.UTC().Format(time.RFC3339)))

	switch {
	case len(alert.Killed) == 0:
		builder.WriteString(fmt.Sprintf("No running %q processes found\n", alert.Process))
	default:
		builder.WriteString(fmt.Sprintf("Terminated %q:\n", alert.Process))
		for _, res := range alert.Killed {
			if res.Err != nil {
				builder.WriteString(fmt.Sprintf("  pid %d: FAILED: %v\n", res.PID, res.Err))
			} else {
				builder.WriteString(fmt.Sprintf("  pid %d: ok\n", res.PID))
			}
		}
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
