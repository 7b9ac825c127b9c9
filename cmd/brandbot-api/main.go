package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PabloGalante/brandbot/internal/adapters/http"
	"github.com/PabloGalante/brandbot/internal/config"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Logger().Error("brandbot api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()

	app, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	handler := httpadapter.NewServer(app.workspace, app.conversation, app.tokens,
		httpadapter.WithDefaultLanguage(domain.ParseLanguage(cfg.DefaultLanguage)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("brandbot api listening", "port", cfg.Port, "mode", cfg.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}

	// Pending autosaves must land before the stores close.
	app.workspace.Flush()
	return nil
}
