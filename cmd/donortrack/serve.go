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
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"donortrack/internal/app"
	"donortrack/internal/metrics"
	"donortrack/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Serve the HTTP API. Set server.jwt_secret (or DONORTRACK_JWT_SECRET) to require bearer tokens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			a, err := openApp(ctx, app.Options{Metrics: m})
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.Config
			if cmd.Flags().Changed("addr") || cfg.Server.Addr == "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") || cfg.Server.BasePath == "" {
				cfg.Server.BasePath = basePath
			}

			handler, err := server.New(server.Config{
				Store:    a.Store,
				Engine:   a.Engine,
				Upstream: a.Upstream,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret: cfg.Server.JWTSecret,
					TokenTTL:  time.Duration(cfg.Server.TokenTTLMinutes) * time.Minute,
				},
				Log:     a.Log.Named("http"),
				Metrics: m,
			})
			if err != nil {
				return err
			}
			hooksDone := server.StartWebhooks(ctx, server.WebhookOptions{
				Store:   a.Store,
				Hooks:   cfg.Webhooks,
				Log:     a.Log,
				Metrics: m,
			})

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			a.Log.Info("serving donortrack API",
				zap.String("addr", "http://"+cfg.Server.Addr+cfg.Server.BasePath),
				zap.Bool("auth", cfg.Server.JWTSecret != ""),
				zap.Int("webhooks", len(cfg.Webhooks)),
				zap.String("workspace", viper.GetString("workspace")),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-hooksDone
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path (overrides server.base_path)")
	return cmd
}
