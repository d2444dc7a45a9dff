package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medhq/hospital-api/internal/config"
	"github.com/medhq/hospital-api/internal/handler"
	appointmentHandler "github.com/medhq/hospital-api/internal/handler/appointment"
	billingHandler "github.com/medhq/hospital-api/internal/handler/billing"
	"github.com/medhq/hospital-api/internal/middleware"
	"github.com/medhq/hospital-api/internal/repository/postgres"
	"github.com/medhq/hospital-api/internal/router"
	appointmentService "github.com/medhq/hospital-api/internal/service/appointment"
	billingService "github.com/medhq/hospital-api/internal/service/billing"
	eventService "github.com/medhq/hospital-api/internal/service/event"
	"github.com/medhq/hospital-api/pkg/auth"
	"github.com/medhq/hospital-api/pkg/lock"
	"github.com/medhq/hospital-api/pkg/logger"
	"github.com/medhq/hospital-api/pkg/messaging"
	redisbroker "github.com/medhq/hospital-api/pkg/messaging/redis"
	"github.com/medhq/hospital-api/pkg/metrics"
	"github.com/medhq/hospital-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Redis backs both the practitioner lock and the event broker. Without
	// it the service still runs, with an in-process lock and no events.
	var (
		locker lock.Locker
		broker messaging.Broker
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis URL")
		}
		redisClient := redis.NewClient(opts)
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL)

		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, appLogger.Zerolog())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis broker")
		}
		defer broker.Close()
	} else {
		appLogger.Warn("redis not configured, using in-process lock and no event broker")
		locker = lock.NewMemoryLocker()
	}

	events := eventService.NewEmitter(broker, appLogger.Zerolog())

	appointmentRepo := postgres.NewAppointmentRepository(db)
	billingRepo := postgres.NewBillingRepository(db)

	startHour, startMin, endHour, endMin, err := cfg.Scheduling.WorkWindow()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduling window")
	}
	loc, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduling timezone")
	}
	slotCfg := appointmentService.SlotConfig{
		SlotMinutes:   cfg.Scheduling.SlotMinutes,
		WorkStartHour: startHour,
		WorkStartMin:  startMin,
		WorkEndHour:   endHour,
		WorkEndMin:    endMin,
		Location:      loc,
	}

	appointmentSvc := appointmentService.NewService(appointmentRepo, locker, events, slotCfg)
	allocator := billingService.NewNumberAllocator(billingRepo, cfg.Billing.NumberPrefix)
	billingSvc := billingService.NewService(billingRepo, allocator, events)

	validate := validator.New()
	authMiddleware := middleware.NewAuthMiddleware(auth.NewTokenVerifier(cfg.JWT.Secret))

	m := metrics.NewMetrics("hospital_api")

	r := router.NewRouter(
		router.Config{
			CORS:         middleware.DefaultCORSConfig(),
			RateLimit:    middleware.RateLimiterConfig{Rate: rate.Limit(100), Burst: 200},
			SlotCacheTTL: cfg.Scheduling.SlotCacheTTL,
		},
		authMiddleware,
		handler.NewHealthHandler(db),
		appointmentHandler.NewHandler(appointmentSvc, validate, m),
		billingHandler.NewHandler(billingSvc, validate, m),
		m,
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	appLogger.Info("server stopped")
}
