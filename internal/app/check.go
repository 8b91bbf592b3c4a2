package app

import (
	"context"
	"fmt"
	"os"
)

// Check performs one signed fetch and prints the current delta. Useful for
// verifying credentials and connectivity before leaving the watchdog running.
func (a *App) Check(ctx context.Context) error {
	delta, err := a.newFetcher().FetchDelta(ctx, a.Config.Currency)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s deltaPA: %s (bound %.4f)\n", a.Config.Currency, delta.String(), a.Config.MaxDelta)
	return nil
}
