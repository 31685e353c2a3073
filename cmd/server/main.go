package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumu-waks/service-booking/internal/application"
	"github.com/dumu-waks/service-booking/internal/config"
	"github.com/dumu-waks/service-booking/internal/consumer"
	"github.com/dumu-waks/service-booking/internal/events"
	"github.com/dumu-waks/service-booking/internal/handler"
	"github.com/dumu-waks/service-booking/internal/notification"
	"github.com/dumu-waks/service-booking/internal/repository"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/database"
	"github.com/dumu-waks/service-booking/pkg/health"
	"github.com/dumu-waks/service-booking/pkg/kafka"
	"github.com/dumu-waks/service-booking/pkg/logger"
	"github.com/dumu-waks/service-booking/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.BookingModel{}, &repository.TransactionModel{}, &repository.TicketModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	bookingRepo := repository.NewGormBookingRepository(db)
	transactionRepo := repository.NewGormTransactionRepository(db)
	ticketRepo := repository.NewGormTicketRepository(db)

	notifier := notification.NewKafkaNotifier(kafkaProducer)

	bookingService := application.NewBookingService(
		bookingRepo,
		transactionRepo,
		ticketRepo,
		notifier,
		log,
	)

	// Payment confirmations arrive asynchronously from the mobile-money
	// pipeline; the consumer applies them to bookings.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "service-booking"
	paymentConsumer := consumer.NewPaymentConsumer(bookingService, transactionRepo, log)
	kafkaConsumer := kafka.NewConsumer(cfg.KafkaConfig.Brokers, groupID, events.TopicPaymentEvents, log)
	defer func() { _ = kafkaConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer", zap.String("topic", events.TopicPaymentEvents))
		if err := kafkaConsumer.Consume(ctx, paymentConsumer.Handle); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	bookingHandler := handler.NewBookingHandler(bookingService)
	adminHandler := handler.NewAdminBookingHandler(bookingService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
