package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/payapp-engine/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		rt, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		handler := api.NewHandler(rt.service, rt.store, rt.log.With().Str("component", "api").Logger())
		router := api.NewRouter(handler, api.RouterConfig{
			AllowedOrigins: rt.cfg.Server.CORSOrigins,
			Metrics:        rt.metrics,
		})

		scheduler := api.NewAuditScheduler(rt.service, rt.metrics, rt.log.With().Str("component", "audit").Logger())
		scheduler.Interval = rt.cfg.Audit.Interval
		scheduler.Enabled = rt.cfg.Audit.Enabled
		scheduler.Start()
		defer scheduler.Stop()

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", rt.cfg.App.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			rt.log.Info().
				Str("app", rt.cfg.App.Name).
				Int("port", rt.cfg.App.Port).
				Str("store", rt.cfg.Store.Driver).
				Msg("server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-quit:
		}

		rt.log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.Timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		rt.log.Info().Msg("server stopped")
		return nil
	},
}
