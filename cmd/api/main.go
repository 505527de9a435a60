package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/signup/broker"
	"github.com/zllovesuki/signup/config"
	"github.com/zllovesuki/signup/customer"
	"github.com/zllovesuki/signup/external"
	"github.com/zllovesuki/signup/guard"
	"github.com/zllovesuki/signup/journal"
	resp "github.com/zllovesuki/signup/response"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var err error

	// Determine running environment and initialize structural logger
	dotFile, env := config.DotFile()
	if env == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Load configurations from dotFile, falling back to the process environment
	if err := godotenv.Load(dotFile); err != nil {
		logger.Warn("Cannot load configurations from .env, using environment only",
			zap.String("File", dotFile),
			zap.Error(err),
		)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: string(cfg.Environment),
		Release:     Version,
		Debug:       cfg.Environment == config.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	sentryCfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(sentryCfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot attach sentry to logger",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	directory, err := newDirectory(cfg, logger)
	if err != nil {
		logger.Fatal("Cannot initialize customer directory",
			zap.String("Backend", cfg.Backend),
			zap.Error(err),
		)
	}

	managerOptions := customer.ManagerOptions{
		Directory: directory,
		Logger:    logger,
	}

	if cfg.PostgresURI != "" {
		j, err := journal.Open(logger, cfg.PostgresURI)
		if err != nil {
			logger.Fatal("Cannot connect to Postgres",
				zap.Error(err),
			)
		}
		defer j.Close()
		managerOptions.Journal = j
	}

	if cfg.RedisURI != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisURI},
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			logger.Fatal("Cannot connect to Redis",
				zap.Error(err),
			)
		}
		defer rdb.Close()

		g, err := guard.New(guard.Options{
			Redis:  rdb,
			Logger: logger,
			TTL:    cfg.SubmissionLockTTL,
		})
		if err != nil {
			logger.Fatal("Cannot initialize submission guard",
				zap.Error(err),
			)
		}
		managerOptions.Guard = g
	}

	if cfg.AMQPURI != "" {
		amqpBroker, err := broker.NewAMQPBroker(cfg.AMQPURI)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()
		managerOptions.Publisher = amqpBroker
	}

	customerManager, err := customer.NewManager(managerOptions)
	if err != nil {
		logger.Fatal("Cannot initialize CustomerManager",
			zap.Error(err),
		)
	}

	customerRouter, err := customer.NewService(customer.Options{
		CustomerManager: customerManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Customer Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(resp.Recoverer(logger))
	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))
	rootRouter.NotFound(resp.NotFound)
	rootRouter.MethodNotAllowed(resp.MethodNotAllowed)

	rootRouter.Mount("/submit-form", customerRouter.Router())
	rootRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.WriteResponse(w, r, map[string]string{"status": "ok"})
	})

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		rootRouter.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	} else {
		logger.Info("Static directory not found, not serving assets",
			zap.String("StaticDir", cfg.StaticDir),
		)
	}

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    cfg.ListenAddr,
	}

	go func() {
		logger.Info("Listening",
			zap.String("Addr", cfg.ListenAddr),
			zap.String("Backend", cfg.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped unexpectedly",
				zap.Error(err),
			)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Unable to shutdown gracefully",
			zap.Error(err),
		)
	}
}

func newDirectory(cfg *config.Config, logger *zap.Logger) (external.Directory, error) {
	switch cfg.Backend {
	case config.BackendStripe:
		return external.NewStripeDirectory(external.NewStripeClient(cfg.Stripe.Key, nil), logger)
	default:
		return external.NewShopifyClient(external.ShopifyOptions{
			ShopName:   cfg.Shopify.ShopName,
			APIKey:     cfg.Shopify.APIKey,
			Password:   cfg.Shopify.Password,
			APIVersion: cfg.Shopify.APIVersion,
			Logger:     logger,
		})
	}
}
