package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/config"
	"github.com/pilatesguru/studio-bot/internal/domain/assistant"
	"github.com/pilatesguru/studio-bot/internal/domain/booking"
	"github.com/pilatesguru/studio-bot/internal/domain/conversation"
	"github.com/pilatesguru/studio-bot/internal/domain/manage"
	"github.com/pilatesguru/studio-bot/internal/domain/notifier"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/middleware"
	"github.com/pilatesguru/studio-bot/internal/pkg/database"
	"github.com/pilatesguru/studio-bot/internal/pkg/logger"
	"github.com/pilatesguru/studio-bot/internal/pkg/response"
	"github.com/pilatesguru/studio-bot/internal/pkg/transport"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
	"github.com/pilatesguru/studio-bot/internal/pkg/yookassa"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Pilates Guru bot")

	loc, err := time.LoadLocation(cfg.StudioTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.StudioTimezone).Msg("Failed to load studio timezone")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	gatewayTimeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second

	scheduling := yclients.NewClient(yclients.Config{
		BaseURL:      cfg.YClientsBaseURL,
		PartnerToken: cfg.YClientsToken,
		UserToken:    cfg.YClientsUserToken,
		CompanyID:    cfg.YClientsCompanyID,
		Timeout:      gatewayTimeout,
		Location:     loc,
	})
	payments := yookassa.NewClient(yookassa.Config{
		BaseURL:   cfg.YooKassaBaseURL,
		ShopID:    cfg.YooKassaShopID,
		SecretKey: cfg.YooKassaSecretKey,
		Timeout:   gatewayTimeout,
	})

	var generator assistant.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := assistant.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		generator = gemini
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, assistant runs in degraded mode")
	}

	sessions := session.NewRedisStore(redis, cfg.SessionTTL)
	sender := transport.NewHTTPSender(cfg.TransportPushURL, cfg.WebhookSecret, gatewayTimeout)

	bookingSvc := booking.NewService(scheduling, payments, cfg.PaymentReturnURL, loc)
	manageSvc := manage.NewService(scheduling, cfg.CancelNoticeHours, loc)
	assistSvc := assistant.NewService(generator)
	conversationSvc := conversation.NewService(sessions, bookingSvc, manageSvc, assistSvc, scheduling).
		WithAdminForwarding(sender, cfg.AdminChatID)
	conversationHandler := conversation.NewHandler(conversationSvc)

	notifiedRepo := notifier.NewRepository(db)
	if err := notifiedRepo.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare notified-events schema")
	}
	worker := notifier.NewWorker(scheduling, notifiedRepo, sender, cfg.NotifierInterval, cfg.SessionDurationMin, loc)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go worker.Run(workerCtx)

	webhookAuth := middleware.WebhookAuth(cfg.WebhookSecret)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", conversationHandler.Routes(webhookAuth))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
