package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/config"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/pdf"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/queue"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/scheduler"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/tokenizer"
	transport "github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/transport/http"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/transport/http/handler"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/db"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := mylogger.New(mylogger.Config{
		Level: cfg.LogLevel,
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "receipt-pdf-helpdesk")
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Error connecting to postgres: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing redis client", zap.Error(err))
		}
	}()

	producer, err := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Fatalf("Error creating kafka producer: %v", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("Error closing kafka producer", zap.Error(err))
		}
	}()

	windows := repository.StalenessWindows{
		MaxDateDiff:     cfg.Recovery.MaxDateDiff,
		MaxDateDiffCart: cfg.Recovery.MaxDateDiffCart,
		MaxDays:         cfg.Recovery.MaxDays,
		MaxDaysCart:     cfg.Recovery.MaxDaysCart,
	}

	receiptRepo := repository.NewReceiptRepository(pool, windows, logger)
	cartRepo := repository.NewCartRepository(pool, windows, logger)
	bizEventRepo := repository.NewBizEventRepository(pool, logger)
	receiptErrorRepo := repository.NewReceiptErrorRepository(pool, logger)

	tok := tokenizer.NewClient(tokenizer.Config{
		BaseURL:     cfg.Tokenizer.BaseURL,
		APIKey:      cfg.Tokenizer.APIKey,
		MaxRetry:    cfg.Tokenizer.MaxRetry,
		InitialWait: cfg.Tokenizer.InitialWait,
		Timeout:     cfg.Tokenizer.Timeout,
	}, logger)

	engine := pdf.NewEngine(cfg.PDF.EngineURL, cfg.PDF.EngineAPIKey, cfg.PDF.Timeout, logger)
	blob := pdf.NewBlobStorage(cfg.PDF.BlobURL, cfg.PDF.BlobAPIKey, cfg.PDF.Timeout)

	receiptSvc := service.NewReceiptService(tok, producer, receiptRepo, bizEventRepo, cfg.EcommerceFilter, logger)
	generateSvc := service.NewGenerateService(engine, blob, logger)
	recoverySvc := service.NewRecoveryService(receiptSvc, receiptRepo, cartRepo, bizEventRepo, cfg.EcommerceFilter, logger)
	regenerateSvc := service.NewRegenerateService(receiptSvc, generateSvc, receiptRepo, bizEventRepo, cfg.EcommerceFilter, logger)
	reviewSvc := service.NewReviewService(receiptErrorRepo, logger)

	querySvc := service.NewQueryService(receiptRepo, cartRepo, bizEventRepo, receiptErrorRepo, logger)
	querySvc = service.NewCachedQueryService(querySvc, redisClient, cfg.Redis.CacheTTL)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})

	app.Use(fiberrecover.New())

	handlers := &transport.Handlers{
		Receipt:      handler.NewReceiptHandler(querySvc, logger),
		ReceiptError: handler.NewReceiptErrorHandler(querySvc, reviewSvc, logger),
		Recovery:     handler.NewRecoveryHandler(recoverySvc, logger),
		Regenerate:   handler.NewRegenerateHandler(regenerateSvc, logger),
		Health:       handler.NewHealthHandler(pool, logger),
	}
	transport.RegisterRoutes(app, handlers)

	recoveryScheduler := scheduler.NewScheduler(recoverySvc, cfg.Recovery, logger)
	go recoveryScheduler.Start(ctx)

	go func() {
		logger.Info("Helpdesk service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP app", zap.Error(err))
	} else {
		logger.Info("HTTP app stopped gracefully")
	}
}
