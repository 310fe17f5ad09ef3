package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/config"
	"github.com/noah-isme/training-progress-api/internal/database"
	"github.com/noah-isme/training-progress-api/internal/handler"
	"github.com/noah-isme/training-progress-api/internal/middleware"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/repository"
	"github.com/noah-isme/training-progress-api/internal/router"
	"github.com/noah-isme/training-progress-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.SessionTemplate{},
		&models.ComponentDefinition{},
		&models.SessionInstance{},
		&models.SessionEnrollment{},
		&models.Enrollment{},
		&models.ComponentProgress{},
		&models.ProgressEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, progress events stay on this node")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	probes := map[string]handler.HealthProbe{"database": database.PingProbe(db)}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error { return database.NATSStatus(natsConn) }
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	templateRepo := repository.NewTemplateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewComponentProgressRepository(db)
	eventRepo := repository.NewProgressEventRepository(db)

	catalog := service.NewComponentCatalog(sessionRepo, templateRepo)
	bus := service.NewProgressEventBus(redisClient, cfg.EventsChannel, natsConn, logger)
	sink := service.MultiSink{
		service.NewAuditEventSink(eventRepo),
		service.NewMetricsEventSink(),
		bus,
	}

	templateService, err := service.NewTemplateService(templateRepo, validate, logger)
	if err != nil {
		log.Fatalf("failed to build template service: %v", err)
	}
	sessionService := service.NewSessionService(sessionRepo, templateRepo, service.NewEnrollmentProvider(enrollmentRepo), validate, logger)
	progressStore := service.NewProgressStore(progressRepo, catalog, sink, cfg.BulkConcurrency, logger)
	queryService := service.NewProgressQueryService(sessionRepo, progressRepo, eventRepo, catalog, logger)
	metricsJob := service.NewProgressMetricsJob(sessionRepo, queryService, cfg.MetricsSchedule, logger)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	bus.Start(runCtx)
	if err := metricsJob.Start(runCtx); err != nil {
		log.Fatalf("failed to schedule progress metrics job: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		TemplateHandler: handler.NewTemplateHandler(templateService, logger),
		SessionHandler:  handler.NewSessionHandler(sessionService, logger),
		ProgressHandler: handler.NewProgressHandler(progressStore, validate, logger),
		ReportHandler:   handler.NewReportHandler(queryService, logger),
		StreamHandler:   handler.NewStreamHandler(bus, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		StaffMiddleware: middleware.RequireRole(middleware.StaffRoles...),
		WriteLimiter:    middleware.RateLimit("progress-writes", cfg.RateLimitMax, cfg.RateLimitWindow),
		HealthProbes:    probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRun, cfg.ShutdownTimeout)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc, timeout time.Duration) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	stopBackground()

	log.Println("server stopped")
}
