package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/medibook/booking-api/internal/config"
	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/repository/postgres"
	availabilityservice "github.com/medibook/booking-api/internal/service/availability"
	bookingservice "github.com/medibook/booking-api/internal/service/booking"
	eventservice "github.com/medibook/booking-api/internal/service/event"
	notificationservice "github.com/medibook/booking-api/internal/service/notification"
	"github.com/medibook/booking-api/internal/worker"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/messaging/redis"
	"github.com/medibook/booking-api/pkg/metrics"
	"github.com/medibook/booking-api/pkg/payment"
	pkgworker "github.com/medibook/booking-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	zl := appLogger.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	sessionRepo := postgres.NewSessionRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	paymentOrderRepo := postgres.NewPaymentOrderRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("booking", "worker")

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbox relay
	outboxProcessor := pkgworker.NewOutboxProcessor(outboxRepo, broker, pkgworker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, appLogger, m)
	go outboxProcessor.Start(ctx)

	// The worker owns expiry: the booking service here never enqueues
	// (its reservations were created by the API), it only cancels.
	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	gateway := payment.NewClient(payment.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	}, zl)

	eventSvc := eventservice.NewService(outboxRepo)
	availabilitySvc := availabilityservice.NewService(sessionRepo, appointmentRepo)
	bookingSvc := bookingservice.NewService(
		appointmentRepo,
		paymentOrderRepo,
		availabilitySvc,
		gateway,
		eventSvc,
		worker.NewEnqueuer(asynqClient),
		m,
		bookingservice.Config{
			ReservationTTL:  cfg.Booking.ReservationTTL,
			ConsultationFee: cfg.Booking.ConsultationFee,
			Currency:        cfg.Booking.Currency,
		},
		zl,
	)

	// Delayed expiry task consumer
	asynqSrv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeReservationExpire, worker.HandleReservationExpiry(bookingSvc, zl))
	go func() {
		if err := asynqSrv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("failed to start task server")
		}
	}()

	// Stale-reservation sweep backs up the delayed tasks.
	sweep := worker.NewReservationSweep(appointmentRepo, bookingSvc, worker.SweepConfig{
		Interval:       cfg.Booking.SweepInterval,
		ReservationTTL: cfg.Booking.ReservationTTL,
	}, zl)
	go sweep.Start(ctx)

	// Email bridge
	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	notificationSvc := notificationservice.NewService(broker, emailSvc, zl)
	go func() {
		if err := notificationSvc.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("notification service stopped")
		}
	}()

	setupHealthCheck(appLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")

	cancel()
	asynqSrv.Shutdown()
	log.Info().Msg("worker exited")
}

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
}
