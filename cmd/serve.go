package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/iyya/iyya/api"
	"github.com/iyya/iyya/internal/app"
	"github.com/iyya/iyya/internal/log"
)

// runServe initializes and starts the HTTP API server.
func runServe(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting iyya API server", "version", AppVersion)

	a, err := app.Setup(ctx, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	listenAddr := a.Config.ListenAddr
	if *addr != "" {
		listenAddr = *addr
	}

	srv := api.NewServer(a.Config, a.Pool, engineProvider(a), a.Syncer, logger.With("component", "api"))
	return srv.Run(ctx, listenAddr)
}

// engineProvider adapts the registry to the API's provider signature.
func engineProvider(a *app.App) api.EngineProvider {
	return func(ctx context.Context, moduleID string) (api.Answerer, error) {
		engine, err := a.Registry.Engine(ctx, moduleID)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}
