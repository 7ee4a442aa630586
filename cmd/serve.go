package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/server"
)

var (
	servePort    int
	serveOrigins string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		// Master layers stay loaded for the life of the process.
		env, err := initGrid(cfg, "serve", true)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: server.New(env.Service, server.Options{
				AllowedOrigins: splitAndTrim(serveOrigins),
				Logger:         zap.L(),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("grid_root", env.Layout.Root))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		if _, err := env.Cache.Purge(); err != nil {
			zap.L().Warn("scratch cleanup failed", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveOrigins, "cors-origins", "", "comma-separated allowed CORS origins (default: any)")
	rootCmd.AddCommand(serveCmd)
}
