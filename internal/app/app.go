package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"delta-guard/internal/alerting"
	"delta-guard/internal/config"
	"delta-guard/internal/fetcher"
	"delta-guard/internal/procctl"
	"delta-guard/internal/scheduler"
	"delta-guard/internal/storage"
	"delta-guard/internal/watchdog"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.DeltaFetcher {
	return fetcher.NewOKX(fetcher.Options{
		BaseURL:    a.Config.API.BaseURL,
		APIKey:     a.Config.APIKey,
		SecretKey:  a.Config.SecretKey,
		Passphrase: a.Config.Passphrase,
		Simulated:  a.Config.API.Simulated,
		Timeout:    a.Config.API.Timeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	return alerting.NewTelegramNotifier(
		a.Config.TeleTok,
		a.Config.TeleChat,
		a.Config.Telegram.APIBase,
		a.Config.Telegram.Timeout,
		a.Logger,
	)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watchdog until SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; trigger events will not be persisted")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval: a.Config.Interval(),
	}, a.Logger)

	var events storage.TriggerEventStore
	if store != nil {
		events = store
	}

	monitor := watchdog.New(watchdog.Options{
		Currency: a.Config.Currency,
		Bound:    decimal.NewFromFloat(a.Config.MaxDelta),
		Hold:     a.Config.Hold(),
		Process:  a.Config.MainProcess,
	}, sched, a.newFetcher(), procctl.New(a.Logger), a.newNotifier(), events, a.Logger)

	err = monitor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watchdog terminated with error")
		return err
	}

	a.Logger.Info().Msg("watchdog stopped")
	return nil
}
