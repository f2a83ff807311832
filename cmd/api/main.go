package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/neurowatch/neuromonitor/internal/adapters/http"
	"github.com/neurowatch/neuromonitor/internal/bootstrap"
	"github.com/neurowatch/neuromonitor/internal/config"
	"github.com/neurowatch/neuromonitor/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Ingestor, app.Gate, app.Chat, app.Monitoring, app.Policy.Gate)
	server := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("listen failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConns)
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
	slog.Info("api stopped")
}
