package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"launtriserv/backend/internal/config"
	customersvc "launtriserv/backend/internal/customer/service"
	"launtriserv/backend/internal/db"
	"launtriserv/backend/internal/otp/rate"
	otpsvc "launtriserv/backend/internal/otp/service"
	"launtriserv/backend/internal/server"
	"launtriserv/backend/internal/sms"
	"launtriserv/backend/internal/user/handler"
	"launtriserv/backend/internal/user/repository"
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer database.Close()

	repo := repository.NewPostgresRepository(database)

	var limiter otpsvc.Limiter
	if cfg.RedisAddr != "" && cfg.OTPMaxPerWindow > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		limiter = rate.NewLimiter(rdb, cfg.OTPWindow(), cfg.OTPMaxPerWindow, cfg.OTPCooldownDuration())
	}

	otpService := otpsvc.NewOTPService(repo, limiter, cfg.OTPValidity())
	customerService := customersvc.NewCustomerService(repo)

	var sender handler.OTPSender
	if !cfg.OTPReturnToClient {
		sender = sms.NewClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender)
	}

	h := handler.New(customerService, otpService, sender, cfg.OTPReturnToClient, logger)
	app := server.New(h, logger)

	go func() {
		logger.Info("userserv listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down userserv")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("userserv stopped")
}
