package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/bootstrap"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/config"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/handler"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		logger.New(false).Fatal("failed to load configuration", zap.Error(err))
	}

	flush := logger.Install(cfg.Log.Debug)
	defer flush()

	if envErr != nil {
		zap.S().Warnf("failed to load .env file, continuing with system environment variables only: %v", envErr)
	}

	app := bootstrap.New(ctx, cfg)
	chatService := chat.NewService()

	router := handler.NewRouter(chatService, app.Orchestrator, app.Speech)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zap.S().Infof("Chinese tutor backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		zap.S().Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
