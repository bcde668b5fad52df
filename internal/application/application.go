package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/config"
	"github.com/Mundir-Doom/loop-support/internal/database"
	"github.com/Mundir-Doom/loop-support/internal/handler"
	"github.com/Mundir-Doom/loop-support/internal/kafka"
	"github.com/Mundir-Doom/loop-support/internal/router"
	"github.com/Mundir-Doom/loop-support/internal/service"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
)

// API — HTTP-приложение (режим api).
type API struct {
	cfg      *config.Config
	httpSrv  *http.Server
	producer *kafka.Producer
}

// NewAPI мигрирует базу и собирает граф зависимостей: сервисы над gorm,
// Telegram notifier, Kafka продюсер и gin-роутер.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	sessionSvc := service.NewSessionService(db)
	ticketSvc := service.NewTicketService(db)
	agentSvc := service.NewAgentService(db)

	notifier, err := telegram.New(cfg.TelegramBotToken, cfg.SupportGroupChatID)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)

	handlers := router.Handlers{
		Session: handler.NewSessionHandler(sessionSvc, ticketSvc, notifier, producer),
		Ticket:  handler.NewTicketHandler(ticketSvc, notifier, producer),
		Webhook: handler.NewWebhookHandler(agentSvc, ticketSvc, notifier, producer),
		Setup:   handler.NewSetupHandler(notifier),
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(handlers, cfg.StaticDir),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:      cfg,
		httpSrv:  httpSrv,
		producer: producer,
	}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", a.httpSrv.Addr)
	log.Printf("  Swagger UI:    %s/swagger", base)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  API:           %s/api", base)
	log.Printf("  Webhook:       %s/api/telegram/webhook", base)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		log.Printf("kafka: close producer: %v", err)
	}
	return nil
}
