package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/internal/sales"
	"github.com/yuditriaji/cafe-backend/internal/scheduler"
	"github.com/yuditriaji/cafe-backend/internal/settings"
	"github.com/yuditriaji/cafe-backend/pkg/config"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/email"
	"github.com/yuditriaji/cafe-backend/pkg/events"
	"github.com/yuditriaji/cafe-backend/pkg/logger"
	"github.com/yuditriaji/cafe-backend/pkg/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := database.Seed(db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed database")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("Failed to connect to Kafka")
		}
		defer kafka.Close()
		publisher = kafka
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing order events to Kafka")
	}

	calendar := settings.NewCalendar(db, cfg.Timezone)
	salesService := sales.NewService(db, calendar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		mailer := email.NewEmailService(cfg.Email.APIKey, cfg.Email.FromAddress)
		if !mailer.IsConfigured() {
			log.Info().Msg("Email service not configured, low stock digests disabled")
		}
		scheduler.NewScheduler(db, calendar, salesService, mailer, cfg.Email.AlertTo, cfg.Scheduler.Interval).Start(ctx)
	}

	r := setupRouter(deps{
		cfg:       cfg,
		db:        db,
		calendar:  calendar,
		sales:     salesService,
		tokens:    session.NewManager(cfg.Auth.JWTSecret),
		publisher: publisher,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("Server exited")
}
