package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the serve entrypoint used by cmd/tggate.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run(configPath string) error {
	return withApp(configPath, func(ctx context.Context, a *App) error {
		return a.Run(ctx)
	})
}

// Login pairs the account (if needed), stores the credential and exits.
func Login(configPath string) error {
	return withApp(configPath, func(ctx context.Context, a *App) error {
		return a.Login(ctx)
	})
}

func withApp(configPath string, fn func(context.Context, *App) error) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log, nil)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}
	return fn(ctx, a)
}
