package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goodwe-gateway/internal/config"
	"goodwe-gateway/internal/db"
	"goodwe-gateway/internal/email"
	apihttp "goodwe-gateway/internal/http"
	"goodwe-gateway/internal/repository"
	"goodwe-gateway/internal/sems"
	"goodwe-gateway/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo  repository.UserRepository
		powerRepo repository.PowerDataRepository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		defer sqlDB.Close()
		userRepo = repository.NewSQLiteUserRepository(sqlDB)
		powerRepo = repository.NewSQLitePowerDataRepository(sqlDB)
	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
		powerRepo = repository.NewPgPowerDataRepository(pool)
	}

	if cfg.MongoURI != "" {
		mongoClient, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Warn("mongo connect failed, power data stays in the primary store", zap.Error(err))
		} else {
			defer func() { _ = mongoClient.Disconnect(context.Background()) }()
			mongoRepo := repository.NewMongoPowerDataRepository(mongoClient.Database(cfg.MongoDatabase))
			if err := mongoRepo.EnsureIndexes(ctx); err != nil {
				logger.Warn("mongo indexes", zap.Error(err))
			}
			powerRepo = mongoRepo
		}
	}

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case cfg.EmailLogCodes:
		logger.Warn("verification codes will be written to the log")
		emailSender = email.NewLogSender(logger)
	}

	var sendLimiter, attemptLimiter service.CodeRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sendLimiter = service.NewRedisCodeRateLimiter(redisClient, logger, "code:send:", 10*time.Minute, 3)
			attemptLimiter = service.NewRedisCodeRateLimiter(redisClient, logger, "code:attempt:", 15*time.Minute, 10)
		}
		cancel()
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())

	authSvc := service.NewAuthService(logger, userRepo, hasher, service.NewNumericCodeGenerator(), jwtSvc, emailSender, sendLimiter, attemptLimiter)
	semsClient := sems.NewClient(cfg.SEMSBaseURL, cfg.SEMSPortalURL, cfg.SEMSTimeout(), logger)
	broker := service.NewUpstreamBroker(logger, semsClient, powerRepo)

	router := apihttp.NewRouter(logger, apihttp.NewAuthHandler(logger, authSvc), apihttp.NewSEMSHandler(logger, broker), jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
	logger.Info("server stopped")
}
