package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitlife/checkout-and-bookings/internal/adapters/crdb"
	mongoadapter "github.com/fitlife/checkout-and-bookings/internal/adapters/mongo"
	"github.com/fitlife/checkout-and-bookings/internal/adapters/rabbit"
	redisadapter "github.com/fitlife/checkout-and-bookings/internal/adapters/redis"
	"github.com/fitlife/checkout-and-bookings/internal/booking"
	"github.com/fitlife/checkout-and-bookings/internal/checkout"
	"github.com/fitlife/checkout-and-bookings/internal/config"
	httphandler "github.com/fitlife/checkout-and-bookings/internal/http"
	"github.com/fitlife/checkout-and-bookings/internal/idempotency"
	"github.com/fitlife/checkout-and-bookings/internal/membership"
	"github.com/fitlife/checkout-and-bookings/internal/notify"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/fitlife/checkout-and-bookings/internal/rateLimit"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := crdb.NewPool(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("fcb")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	notifier := notify.NewRabbitNotifier(rabbitPub)

	initiator := checkout.NewInitiator(repo, catalog, audit, logger, cfg.FreeDeliveryThreshold, cfg.StandardDeliveryCost)
	oracle := checkout.NewOracle(repo, cfg.OracleAttempts, cfg.OracleDelay, logger)
	reconciler := checkout.NewReconciler(repo, catalog, oracle, notifier, audit, logger, cfg.FreeDeliveryThreshold, cfg.StandardDeliveryCost)

	entitlement := membership.NewChecker(repo, redisCache, cfg.MembershipTTL, logger)
	bookings := booking.NewService(repo, entitlement, logger)

	handlers := httphandler.NewHandlers(cfg, initiator, reconciler, bookings, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
