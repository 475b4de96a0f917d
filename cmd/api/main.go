package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"vtu/internal/admin"
	"vtu/internal/auth"
	"vtu/internal/beneficiary"
	"vtu/internal/dispatch"
	"vtu/internal/handler"
	"vtu/internal/kyc"
	"vtu/internal/middleware"
	"vtu/internal/notification"
	"vtu/internal/plan"
	"vtu/internal/referral"
	"vtu/internal/repository/postgres"
	"vtu/internal/scheduler"
	"vtu/internal/simpool"
	"vtu/internal/support"
	"vtu/internal/wallet"
	"vtu/pkg/cache"
	"vtu/pkg/config"
	"vtu/pkg/logger"
	"vtu/pkg/mailer"
	"vtu/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("vtu-api")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to redis", map[string]interface{}{"error": err.Error()})
	}
	defer redisCache.Close()

	val := validator.New()

	var sender mailer.Sender = mailer.Nop{}
	if cfg.Email.SMTPUsername != "" {
		sender = mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
			UseTLS:   cfg.Email.SMTPUseTLS,
		})
	}

	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	txRepo := postgres.NewTransactionRepository(db)
	simRepo := postgres.NewSimRepository(db)
	planRepo := postgres.NewPlanRepository(db)
	kycRepo := postgres.NewKycRepository(db)
	supportRepo := postgres.NewSupportRepository(db)
	referralRepo := postgres.NewReferralRepository(db)
	beneficiaryRepo := postgres.NewBeneficiaryRepository(db)
	apiKeyRepo := postgres.NewApiKeyRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Services.
	notifier := notification.NewService(sender, os.Getenv("ADMIN_ALERT_EMAIL"), log)
	walletSvc := wallet.NewService(ledgerRepo, log)
	poolSvc := simpool.NewService(simRepo, notifier, cfg.Dispatch.PauseThreshold, log)
	referralSvc := referral.NewService(referralRepo, txRepo, userRepo, walletSvc, cfg.Referral.Rate, log)
	provider := dispatch.NewHTTPClient(cfg.Dispatch.ProviderBaseURL, cfg.Dispatch.ProviderAPIKey, cfg.Dispatch.Timeout, log)
	dispatchSvc := dispatch.NewService(txRepo, walletSvc, poolSvc, planRepo, userRepo, provider, referralSvc, dispatch.Config{
		Timeout:              cfg.Dispatch.Timeout,
		UnverifiedDailyLimit: cfg.Dispatch.UnverifiedDailyLimit,
	}, log)
	kycSvc := kyc.NewService(kycRepo, userRepo, notifier, log)
	supportSvc := support.NewService(supportRepo, userRepo, notifier, log)
	planSvc := plan.NewService(planRepo, txRepo, redisCache, log)
	adminSvc := admin.NewService(userRepo, txRepo, settingsRepo, log)
	authSvc := auth.NewService(userRepo, apiKeyRepo, cfg.JWT.Secret, cfg.JWT.Expiration, log)
	beneficiarySvc := beneficiary.NewService(beneficiaryRepo, log)

	// Watchdog: stale means twice the dispatch timeout plus grace.
	staleAfter := cfg.Dispatch.WatchdogStaleAfter
	if min := 2*cfg.Dispatch.Timeout + 30*time.Second; staleAfter < min {
		staleAfter = min
	}
	watchdog := scheduler.NewWatchdog(dispatchSvc, cfg.Dispatch.WatchdogInterval, staleAfter, log)
	watchdog.Start()
	defer watchdog.Stop()

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	router := handler.NewRouter(handler.RouterDeps{
		Auth:        handler.NewAuthHandler(authSvc, val, log, uploadDir),
		User:        handler.NewUserHandler(authSvc, referralSvc, log),
		Wallet:      handler.NewWalletHandler(walletSvc, log),
		Transaction: handler.NewTransactionHandler(dispatchSvc, val, log),
		Plan:        handler.NewPlanHandler(planSvc, val, log),
		Sim:         handler.NewSimHandler(poolSvc, val, log),
		Kyc:         handler.NewKycHandler(kycSvc, log, uploadDir),
		Support:     handler.NewSupportHandler(supportSvc, val, log),
		Beneficiary: handler.NewBeneficiaryHandler(beneficiarySvc, val, log),
		Admin:       handler.NewAdminHandler(adminSvc, log),
		Stream:      handler.NewStreamHandler(adminSvc, log),

		AuthMW:  middleware.NewAuthMiddleware(authSvc, userRepo, redisCache),
		Logging: middleware.NewLoggingMiddleware(log),
		Limiter: middleware.NewRateLimiter(redisCache.Client(), 120, time.Minute),
		Idem:    middleware.NewIdempotencyMiddleware(redisCache.Client(), 24*time.Hour),
		Recover: middleware.Recovery(log),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("API server starting", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
