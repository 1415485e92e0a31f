package main

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

	"github.com/P1T0NN/cristian-website-sub000/cache"
	"github.com/P1T0NN/cristian-website-sub000/config"
	"github.com/P1T0NN/cristian-website-sub000/db"
	"github.com/P1T0NN/cristian-website-sub000/handlers"
	"github.com/P1T0NN/cristian-website-sub000/live"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/P1T0NN/cristian-website-sub000/routes"
	"github.com/P1T0NN/cristian-website-sub000/services"
	"github.com/P1T0NN/cristian-website-sub000/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const (
	schedulerInterval = 60 * time.Second
	jwtTokenTTL       = 24 * time.Hour
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Миграции схемы
	if err := db.RunMigrations(dbConn); err != nil {
		logger.Error("failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Хранилище аватарок (Cloudflare R2) — опционально
	var uploader storage.FileUploader
	r2cfg := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2cfg.Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(r2cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("Cloudflare R2 is not configured, avatar uploads disabled")
	}

	// WebSocket Hub: комната на матч
	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	// Кэш ответов
	responseCache := cache.NewMemory()

	// Репозитории
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	ledgerRepo := repositories.NewPostgresLedgerRepository(dbConn)
	logger.Info("repositories initialized")

	// Сервисы
	txRunner := services.NewTxRunner(dbConn)
	ledgerService := services.NewLedgerService(userRepo, ledgerRepo)
	actorService := services.NewActorService(userRepo, rosterRepo)
	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(txRunner, userRepo, ledgerService, uploader, logger)
	matchService := services.NewMatchService(txRunner, matchRepo, rosterRepo, ledgerService, responseCache, wsHub, logger)
	rosterService := services.NewRosterService(
		txRunner, matchRepo, rosterRepo, userRepo, ledgerService,
		responseCache, wsHub, cfg.LeaveCutoff, cfg.DefaultPhoneRegion,
	)
	substitutionService := services.NewSubstitutionService(
		txRunner, matchRepo, rosterRepo, ledgerService, responseCache, wsHub,
	)
	logger.Info("services initialized")

	// Планировщик: активные матчи с прошедшим kickoff переводятся в pending
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("match status scheduler started", slog.Duration("interval", schedulerInterval))

		if err := matchService.AutoUpdateMatchStatuses(context.Background()); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}
		for range ticker.C {
			if err := matchService.AutoUpdateMatchStatuses(context.Background()); err != nil {
				logger.Error("scheduler: periodic run failed", slog.Any("error", err))
			}
		}
	}()

	// Обработчики HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey, jwtTokenTTL)
	matchHandler := handlers.NewMatchHandler(actorService, matchService, responseCache)
	rosterHandler := handlers.NewRosterHandler(actorService, rosterService, substitutionService)
	userHandler := handlers.NewUserHandler(actorService, userService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	// Маршрутизатор
	router := chi.NewRouter()
	routes.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		authHandler,
		matchHandler,
		rosterHandler,
		userHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
