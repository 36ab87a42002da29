package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/medibook/booking-api/internal/config"
	appointmenthandler "github.com/medibook/booking-api/internal/handler/appointment"
	availabilityhandler "github.com/medibook/booking-api/internal/handler/availability"
	healthhandler "github.com/medibook/booking-api/internal/handler/health"
	"github.com/medibook/booking-api/internal/middleware"
	"github.com/medibook/booking-api/internal/repository/postgres"
	"github.com/medibook/booking-api/internal/router"
	availabilityservice "github.com/medibook/booking-api/internal/service/availability"
	bookingservice "github.com/medibook/booking-api/internal/service/booking"
	eventservice "github.com/medibook/booking-api/internal/service/event"
	rescheduleservice "github.com/medibook/booking-api/internal/service/reschedule"
	"github.com/medibook/booking-api/internal/worker"
	"github.com/medibook/booking-api/pkg/auth"
	"github.com/medibook/booking-api/pkg/metrics"
	"github.com/medibook/booking-api/pkg/payment"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	logger := log.Logger

	// Repositories
	sessionRepo := postgres.NewSessionRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	paymentOrderRepo := postgres.NewPaymentOrderRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("booking", "api")

	// Delayed expiry tasks share the worker's redis queue.
	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	enqueuer := worker.NewEnqueuer(asynqClient)

	gateway := payment.NewClient(payment.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	}, &logger)

	// Services
	eventSvc := eventservice.NewService(outboxRepo)
	availabilitySvc := availabilityservice.NewService(sessionRepo, appointmentRepo)
	bookingSvc := bookingservice.NewService(
		appointmentRepo,
		paymentOrderRepo,
		availabilitySvc,
		gateway,
		eventSvc,
		enqueuer,
		m,
		bookingservice.Config{
			ReservationTTL:  cfg.Booking.ReservationTTL,
			ConsultationFee: cfg.Booking.ConsultationFee,
			Currency:        cfg.Booking.Currency,
		},
		&logger,
	)
	rescheduleSvc := rescheduleservice.NewService(appointmentRepo, sessionRepo, availabilitySvc, eventSvc, &logger)

	// Middleware and handlers
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:      cfg.JWT.Secret,
		ExpiryHours: cfg.JWT.ExpiryHours,
	})
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	availabilityHandler := availabilityhandler.NewHandler(availabilitySvc)
	appointmentHandler := appointmenthandler.NewHandler(bookingSvc, rescheduleSvc)
	healthHandler := healthhandler.NewHandler(db)

	r := router.NewRouter(
		authMiddleware,
		availabilityHandler,
		appointmentHandler,
		healthHandler,
		router.Config{
			RateLimit:        100,
			RateBurst:        200,
			ReservationRate:  10,
			ReservationBurst: 20,
			CORSConfig:       middleware.DefaultCORSConfig(),
			Timeout:          time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
