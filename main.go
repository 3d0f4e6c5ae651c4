package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moveflow/config"
	"moveflow/cron"
	"moveflow/database"
	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/database/repository/memory"
	"moveflow/handlers"
	"moveflow/middleware"
	"moveflow/routes"
	"moveflow/services/booking"
	"moveflow/services/fleet"
	"moveflow/services/notification"
	"moveflow/services/payment"
	"moveflow/services/tasks"
	"moveflow/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type stores struct {
	bookings bookingRepo.BookingRepository
	fleet    fleetRepo.FleetRepository
	health   *utils.HealthMonitor
	close    func()
}

// openStores connects the configured backend and prepares its schema or indexes.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.ConnectPostgres(cfg.DatabaseURL, !config.IsProductionEnv(cfg.Env))
		if err != nil {
			return nil, err
		}
		fr, br := fleetRepo.NewGormFleetRepo(db), bookingRepo.NewGormBookingRepo(db)
		if err := database.MigratePostgres(ctx, fr, br); err != nil {
			return nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return &stores{bookings: br, fleet: fr, health: &utils.HealthMonitor{Postgres: db}, close: closeFn}, nil

	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		mdb := client.Database(cfg.MongoDatabase)
		fr, br := fleetRepo.NewMongoFleetRepo(mdb), bookingRepo.NewMongoBookingRepo(mdb)
		if err := database.EnsureMongoIndexes(ctx, fr, br); err != nil {
			return nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return &stores{bookings: br, fleet: fr, health: &utils.HealthMonitor{Mongo: client}, close: closeFn}, nil

	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		s := memory.NewStore()
		return &stores{bookings: s, fleet: s, health: &utils.HealthMonitor{}, close: func() {}}, nil
	}
	return nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
}

// buildNotifier fans out to every configured channel. The log channel is always on.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notification.Notifier, func()) {
	notifiers := notification.MultiNotifier{notification.LogNotifier{Logger: logger}}
	closeFn := func() {}

	if cfg.FirebaseCredentialsFile != "" {
		client, err := utils.NewMessagingClient(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Warn("Push notifications disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, notification.NewPushNotifier(client, logger))
		}
	}
	if cfg.AMQPURL != "" {
		pub, err := notification.NewEventPublisher(cfg.AMQPURL, cfg.BookingExchange)
		if err != nil {
			logger.Warn("Event publishing disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, pub)
			closeFn = func() { _ = pub.Close() }
		}
	}
	return notifiers, closeFn
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.GetLogger().Sugar().Fatalf("main: failed to load config: %v", err)
	}
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := utils.InitTracer(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.Env)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize tracing: %v", err)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open store: %v", err)
	}
	defer st.close()

	notifier, closeNotifier := buildNotifier(ctx, cfg, logger)
	defer closeNotifier()

	// services.
	bookingSvc := booking.NewDefaultBookingService(st.bookings, st.fleet, logger)
	bookingSvc.Rules = booking.Rules{
		DefaultBufferMinutes:  cfg.DefaultCommuteBufferMinutes,
		PlatformFeePercentage: cfg.PlatformFeePercentage,
		RequirePayment:        cfg.RequirePaymentBeforeConfirm,
		ReminderLead:          24 * time.Hour,
	}
	if cfg.StripeKey != "" {
		bookingSvc.Payments = payment.NewStripeRefunder(cfg.StripeKey, logger)
	} else {
		logger.Warn("STRIPE_KEY not set; refunds will be recorded as failed and retried")
	}
	fleetSvc := fleet.NewDefaultFleetService(st.fleet, logger)

	// redis backs the availability cache and the task queue. Without it
	// notifications are delivered inline and reminders are skipped.
	bookingSvc.Events = notification.DirectDispatcher{Notifier: notifier}
	var worker *cron.Worker
	if cacheClient, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheDB); err != nil {
		logger.Warn("Redis unavailable; running without cache and queue", zap.Error(err))
	} else {
		defer cacheClient.Close()
		bookingSvc.Cache = booking.NewRedisAvailabilityCache(cacheClient, cfg.AvailabilityCacheTTL)
		st.health.Redis = []*redis.Client{cacheClient}

		queueOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB}
		queueClient := asynq.NewClient(queueOpt)
		defer queueClient.Close()
		dispatcher := tasks.NewAsynqDispatcher(queueClient, logger)
		bookingSvc.Events = dispatcher
		bookingSvc.Reminders = dispatcher

		worker = cron.NewWorker(cron.WorkerConfig{
			Redis:           queueOpt,
			RefundSweepCron: cfg.RefundSweepCron,
		}, bookingSvc, bookingSvc, notifier, logger)
		if err := worker.Start(); err != nil {
			logger.Sugar().Fatalf("main: failed to start worker: %v", err)
		}
	}
	st.health.Start(ctx)

	if config.IsProductionEnv(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(utils.RequestLogger(logger))

	handlerBundle := &handlers.HandlerBundle{
		Bookings: handlers.NewBookingHandler(bookingSvc, logger),
		Fleet:    handlers.NewFleetHandler(fleetSvc, bookingSvc, logger),
		Health:   st.health,
	}
	routes.RegisterRoutes(router, handlerBundle, routes.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOriginList(),
		Limiter:     middleware.NewLimiterStore(cfg.MaxRequestsPerMin),
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown failed", zap.Error(err))
	}
	logger.Sugar().Info("main: server stopped gracefully")
}
