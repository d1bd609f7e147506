package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"launtriserv/backend/internal/config"
	"launtriserv/backend/internal/gateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	app, err := gateway.New(cfg, logger)
	if err != nil {
		logger.Fatal("gateway", zap.Error(err))
	}

	go func() {
		logger.Info("gateway listening",
			zap.String("addr", cfg.GatewayAddr),
			zap.String("upstream", cfg.UserservURL))
		if err := app.Listen(cfg.GatewayAddr); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("gateway stopped")
}
