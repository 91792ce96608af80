package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/playbook/pkg/adapters/http"
	"github.com/aretw0/playbook/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the engine as a JSON API described by /openapi.yaml, with server-sent
events on /events and Prometheus metrics on /metrics when metrics are enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr := app.Config.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		api, err := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithStreams(app.Streams),
			httpAdapter.WithLogger(app.Logger),
		)
		if err != nil {
			return fmt.Errorf("failed to build API: %w", err)
		}

		mux := http.NewServeMux()
		if app.Registry != nil {
			mux.Handle("/metrics", observability.Handler(app.Registry))
		}
		mux.Handle("/", api)

		ctx := cmd.Context()
		if err := app.WatchCatalog(ctx); err != nil {
			app.Logger.Warn("Catalog watch disabled", "err", err)
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Playbook API listening", "address", addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			app.Logger.Info("Shutdown signal received, stopping API server")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides http_addr)")
}
