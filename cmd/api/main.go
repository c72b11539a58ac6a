package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/config"
	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/cache"
	"github.com/xavierca1/healing-ledger/internal/infra/database"
	"github.com/xavierca1/healing-ledger/internal/infra/events"
	"github.com/xavierca1/healing-ledger/internal/infra/http/handlers"
	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/infra/logger"
	"github.com/xavierca1/healing-ledger/internal/infra/mail"
	"github.com/xavierca1/healing-ledger/internal/infra/queue"
	"github.com/xavierca1/healing-ledger/internal/infra/worker"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

const version = "1.0.0"

type eventPublisher interface {
	entity.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBConnection(database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("schema migration failed", zap.Error(err))
		}
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("rabbitmq connection failed", zap.Error(err))
	}
	defer rabbit.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	var publisher eventPublisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			Retries:     cfg.Kafka.ProducerRetries,
			Timeout:     cfg.Kafka.ProducerTimeout,
			Compression: cfg.Kafka.Compression,
		}, logger.WithComponent(log, "events"))
		if err != nil {
			log.Warn("kafka unavailable, domain events disabled", zap.Error(err))
		} else {
			publisher = kp
		}
	}
	defer publisher.Close()

	// 1. Repositories
	var products entity.ProductRepositoryInterface = database.NewProductRepository(db)
	if redisClient != nil {
		products = cache.NewProductRepository(products, redisClient, cfg.Redis.CatalogTTL, logger.WithComponent(log, "cache"))
	}
	purchases := database.NewPurchaseRepository(db)
	customers := database.NewCustomerRepository(db)
	leads := database.NewLeadRepository(db)
	chats := database.NewChatRepository(db)
	aiLeads := database.NewAILeadRepository(db)
	emailLogs := database.NewEmailLogRepository(db)

	// 2. Adapters
	producer := queue.NewProducer(rabbit.Ch)
	mailer := newMailer(cfg.Mail)

	// 3. Use cases
	ucLog := logger.WithComponent(log, "usecase")
	catalog := usecase.NewCatalogService(products, purchases, ucLog)
	ledger := usecase.NewPurchaseLedger(purchases, publisher, ucLog)
	leadCapture := usecase.NewLeadCapture(leads, publisher, ucLog)
	chat := usecase.NewChatLedger(chats, aiLeads, publisher, ucLog)
	delivery := usecase.NewEmailDelivery(emailLogs, purchases, producer, mailer, usecase.RetryPolicy{
		MaxAttempts:     cfg.Delivery.MaxAttempts,
		InitialInterval: cfg.Delivery.InitialBackoff,
		MaxInterval:     cfg.Delivery.MaxBackoff,
	}, cfg.Mail.DownloadBaseURL, ucLog)
	checkout := usecase.NewCheckoutService(customers, products, ledger, delivery, leadCapture, chat, ucLog)

	// 4. Workers
	consumerCh, err := rabbit.Conn.Channel()
	if err != nil {
		log.Fatal("failed to open consumer channel", zap.Error(err))
	}
	queueWorker := queue.NewWorker(consumerCh, delivery, logger.WithComponent(log, "queue"))
	queueWorker.OnOutcome = func(o queue.Outcome) { middleware.RecordEmailProcessed(string(o)) }
	go func() {
		if err := queueWorker.Start(ctx, queue.QueueName); err != nil {
			log.Error("email queue worker stopped", zap.Error(err))
		}
	}()

	outbox := worker.NewEmailOutboxWorker(delivery,
		cfg.Delivery.SweepInterval, cfg.Delivery.StaleAfter, cfg.Delivery.SweepBatchLimit,
		logger.WithComponent(log, "outbox"))
	go outbox.Start(ctx)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, cfg.Redis.RateLimit, cfg.Redis.RateLimitWindow)
	} else {
		mem := middleware.NewMemoryLimiter(cfg.Redis.RateLimit, cfg.Redis.RateLimitWindow)
		go mem.Cleanup(ctx, cfg.Redis.RateLimitWindow)
		limiter = mem
	}

	// 5. Handlers
	httpLog := logger.WithComponent(log, "http")
	checks := map[string]handlers.Pinger{
		"database": db.PingContext,
		"rabbitmq": func(context.Context) error {
			if !rabbit.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		},
		"redis": nil,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := handlers.Router{
		Products:       handlers.NewProductHandler(catalog, httpLog),
		Purchases:      handlers.NewPurchaseHandler(ledger, httpLog),
		Leads:          handlers.NewLeadHandler(leadCapture, httpLog),
		Chat:           handlers.NewChatHandler(chat, httpLog),
		Emails:         handlers.NewEmailHandler(delivery, cfg.Mail.WebhookSecret, httpLog),
		Stripe:         handlers.NewStripeWebhookHandler(checkout, cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance, httpLog),
		Health:         handlers.NewHealthHandler(version, checks),
		Limiter:        limiter,
		AllowedOrigins: cfg.App.CORSOrigins,
		TrustProxy:     cfg.App.TrustProxy,
		Logger:         httpLog,
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}
	if cfg.Mail.WebhookSecret == "" {
		log.Warn("MAIL_WEBHOOK_SECRET not set, mail provider callbacks are not verified")
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.App.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newMailer(cfg config.MailConfig) usecase.Mailer {
	from := mail.From{Address: cfg.FromAddress, Name: cfg.FromName}
	if cfg.Provider == "resend" {
		return mail.NewResendSender(cfg.ResendAPIKey, from)
	}
	return mail.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, from)
}
