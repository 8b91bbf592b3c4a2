package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DeltaFetcher retrieves the account delta metric for one currency.
type DeltaFetcher interface {
	FetchDelta(ctx context.Context, currency string) (decimal.Decimal, error)
}

// APIError reports a failed or unusable exchange response. StatusCode is zero
// when the HTTP exchange succeeded but the body could not be interpreted.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		if e.Message != "" {
			return fmt.Sprintf("exchange api error (%d): %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("exchange api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("exchange api error: %s", e.Message)
}
