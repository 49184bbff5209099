package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/auth"
	"dm-service/internal/config"
	"dm-service/internal/db"
	"dm-service/internal/events"
	"dm-service/internal/grpcserver"
	"dm-service/internal/handlers"
	"dm-service/internal/logging"
	"dm-service/internal/mail"
	"dm-service/internal/media"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

const serviceName = "dm-service"

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn(ctx, "tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer database.Close()

	revoked, closeRevoked := revocationStore(ctx, cfg, log)
	defer closeRevoked()
	authenticator := auth.NewAuthenticator(auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL), revoked)

	bus, closeBus := eventBus(ctx, cfg, log)
	defer closeBus()

	hub := ws.NewHub(log)
	ws.NewRouter(hub, log).Attach(bus)

	publisher := rabbitmq.NewPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info(ctx, "event publisher ready",
		"mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.dm", serviceName, cfg.Environment, log)
	mailer := mail.NewQueueMailer(publisher, log)
	images := imageHost(ctx, cfg, log)

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewChatRequestRepo(database)

	api := handlers.Handlers{
		Auth: handlers.NewAuthHandler(userRepo, authenticator, mailer, images, bus, audit,
			handlers.AuthOptions{ClientURL: cfg.ClientURL, CookieSecure: cfg.CookieSecure}, log),
		Users:        handlers.NewUserHandler(userRepo, log),
		Messages:     handlers.NewMessageHandler(messageRepo, userRepo, requestRepo, images, bus, cfg.ChatRequestGating, log),
		ChatRequests: handlers.NewChatRequestHandler(requestRepo, userRepo, bus, log),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		otelgin.Middleware(serviceName),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		observability.HTTPMetricsMiddleware(),
		gin.Recovery(),
	)

	api.Register(router, middleware.AuthMiddleware(authenticator))
	router.GET("/ws", ws.NewConnectionHandler(hub, authenticator, cfg.ClientURL, log).Handle)
	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	var health *grpcserver.HealthServer
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return err
		}
		health = grpcserver.NewHealthServer(log)
		go func() {
			if err := health.Serve(lis); err != nil {
				log.Error(ctx, "grpc health server failed", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if health != nil {
		health.SetServing(true)
	}

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if health != nil {
		health.SetServing(false)
		health.Stop(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

func revocationStore(ctx context.Context, cfg *config.Config, log logging.Logger) (auth.RevocationStore, func()) {
	if cfg.RedisAddr == "" {
		return auth.NewMemoryRevocations(), func() {}
	}
	store, err := auth.NewRedisRevocations(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn(ctx, "redis unavailable, revocations kept in memory", "error", err)
		return auth.NewMemoryRevocations(), func() {}
	}
	return store, func() { _ = store.Close() }
}

func eventBus(ctx context.Context, cfg *config.Config, log logging.Logger) (events.Bus, func()) {
	if cfg.NATSURL == "" {
		return events.NewLocalBus(), func() {}
	}
	bus, err := events.NewNATSBus(events.DefaultNATSConfig(cfg.NATSURL), log)
	if err != nil {
		log.Warn(ctx, "nats unavailable, using local bus", "error", err)
		return events.NewLocalBus(), func() {}
	}
	return bus, func() { _ = bus.Close() }
}

func imageHost(ctx context.Context, cfg *config.Config, log logging.Logger) media.ImageHost {
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		log.Warn(ctx, "image uploads disabled", "reason", "no s3 credentials")
		return media.Disabled{}
	}
	host, err := media.NewS3ImageHost(ctx, media.Config{
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		log.Warn(ctx, "image uploads disabled", "error", err)
		return media.Disabled{}
	}
	return host
}
