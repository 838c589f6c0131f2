package app

import (
	"context"
	"fmt"

	"promptbridge/internal/bridge"
	"promptbridge/internal/comfy"
	"promptbridge/internal/gateway/config"
	"promptbridge/internal/gateway/handler"
	"promptbridge/internal/gateway/server"
)

type App struct {
	server *server.Server
	stores *gatewayStores
}

// New loads configuration from args and the environment and wires the bridge.
func New(args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	// Dependencies
	retry := comfy.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Comfy.RetryMaxAttempts
	retry.BaseDelay = cfg.Comfy.RetryBaseDelay
	worker, err := comfy.New(comfy.Options{
		Addr:        cfg.Comfy.Addr,
		UseTLS:      cfg.Comfy.UseTLS,
		HTTPTimeout: cfg.Comfy.HTTPTimeout,
		Retry:       retry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure worker client: %w", err)
	}

	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}

	b := bridge.New(worker, bridge.NewMaterializer(stores.artifact), bridge.Options{
		WaitTimeout: cfg.Bridge.WaitTimeout,
	})

	promptHandler, err := handler.NewPromptHandler(b, cfg.Bridge.PublicBaseURL, cfg.Bridge.MaxRequestBytes)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	imageHandler := handler.NewImageHandler(stores.artifact)
	healthHandler := handler.NewHealthHandler(worker)
	debugHandler := handler.NewDebugHandler(stores.artifact)

	// Routing & Server
	mux := server.NewMux(promptHandler, imageHandler, healthHandler, debugHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		stores: stores,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.stores.Close(); err == nil {
		err = cerr
	}
	return err
}
