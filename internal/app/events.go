package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// EventsOptions configure the events command.
type EventsOptions struct {
	Limit int
}

// Events prints recent trigger events, newest first.
func (a *App) Events(ctx context.Context, opts EventsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; no trigger events recorded")
	}
	if closeStore != nil {
		defer closeStore()
	}

	events, err := store.ListRecentEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no trigger events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCurrency\tDelta\tBound\tHeld\tKilled\tFailed\tNotified")

	for _, ev := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
			ev.TriggeredAt.UTC().Format(time.RFC3339),
			ev.Currency,
			ev.Delta.StringFixed(4),
			ev.Bound.StringFixed(4),
			time.Duration(ev.HeldSeconds)*time.Second,
			len(ev.KilledPIDs),
			len(ev.FailedPIDs),
			ev.Notified,
		)
	}

	writer.Flush()
	return nil
}
