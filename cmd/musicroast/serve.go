package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Slavikss/musicroast/internal/authsession"
	"github.com/Slavikss/musicroast/internal/browser"
	"github.com/Slavikss/musicroast/internal/config"
	"github.com/Slavikss/musicroast/internal/httpapi"
	"github.com/Slavikss/musicroast/internal/logging"
	"github.com/Slavikss/musicroast/internal/observability"
	"github.com/Slavikss/musicroast/internal/relay"
	"github.com/Slavikss/musicroast/internal/tokenstore"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	metrics := observability.NewMetrics("musicroast")
	store := tokenstore.New(cfg.Tokens.DefaultTTL)

	controller := browser.NewChromeController(browser.ControllerConfig{
		ExecutablePath: cfg.Browser.ChromeBinary,
		NoSandbox:      cfg.Browser.NoSandbox,
		MaxInstances:   cfg.Browser.MaxInstances,
	})

	manager := authsession.NewManager(authsession.Config{
		AuthURL:         browser.YandexAuthURL(cfg.OAuth.ClientID),
		Viewport:        cfg.Viewport(),
		MaxSessions:     cfg.Sessions.Max,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		AbsoluteTimeout: cfg.Sessions.LoginTimeout,
	}, controller, store, metrics)
	manager.Start()
	defer manager.Stop()

	api := httpapi.New(cfg, manager, store, relay.NewHandler(manager, metrics), metrics)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("serving on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
