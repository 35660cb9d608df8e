package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"skillforge/user-service/internal/auth"
	"skillforge/user-service/internal/cache"
	"skillforge/user-service/internal/config"
	"skillforge/user-service/internal/db"
	internalhttp "skillforge/user-service/internal/http"
	"skillforge/user-service/internal/mail"
	"skillforge/user-service/internal/repository"
	"skillforge/user-service/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	store := repository.NewStore(pool)
	sessionCache := cache.New(redisClient)
	mailer := mail.New(mail.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		AppBaseURL: cfg.AppBaseURL,
	}, logger)
	issuer := auth.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	svc := service.New(logger, store, store, store, sessionCache, mailer, issuer, service.Config{
		RefreshTTL:         cfg.RefreshTokenTTL,
		RefreshTTLRemember: cfg.RefreshTokenTTLRemember,
		ResetTokenTTL:      cfg.ResetTokenTTL,
		SessionCacheTTL:    cfg.SessionCacheTTL,
		Lockout: service.LockoutPolicy{
			Threshold: cfg.LockoutThreshold,
			Duration:  cfg.LockoutDuration,
		},
	})

	authLimiter := cache.NewLimiter(redisClient, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	generalLimiter := cache.NewLimiter(redisClient, "general", cfg.GeneralRateLimit, cfg.AuthRateWindow)

	server := internalhttp.NewServer(svc, issuer, logger, authLimiter, generalLimiter)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("user-service listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
