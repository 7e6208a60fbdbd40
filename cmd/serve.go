package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/sous/internal/api"
	"github.com/abhisek/sous/internal/app"
	"github.com/abhisek/sous/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret (or SOUS_JWT_SECRET) is required")
		}

		logger, level := config.NewLogger(os.Stderr, cfg.Log)
		api.SetLogger(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := app.Open(ctx, cfg, logger, nil)
		if err != nil {
			return fmt.Errorf("open engine: %w", err)
		}
		defer e.Close()

		// The log level follows the config file while serving.
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			stopWatch, err := config.Watch(path, logger, func(c *config.Config) {
				if l, err := config.ParseLevel(c.Log.Level); err == nil {
					level.Set(l)
				}
			})
			if err != nil {
				logger.Warn("config watch disabled", slog.Any("err", err))
			} else {
				defer stopWatch()
			}
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           http.TimeoutHandler(api.NewServer(e, buildVersion()).Routes(cfg.Server.JWTSecret), cfg.Server.Timeout, "request timed out"),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", slog.String("addr", cfg.Server.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an API bearer token for the owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Owner == "" {
			return fmt.Errorf("no owner: pass --owner or set SOUS_OWNER")
		}
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret (or SOUS_JWT_SECRET) is required")
		}
		tok, err := api.IssueToken(cfg.Server.JWTSecret, cfg.Owner, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
