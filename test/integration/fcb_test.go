package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
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
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var schema = []string{
	`CREATE TABLE orders (
		id UUID PRIMARY KEY,
		order_number STRING NOT NULL UNIQUE,
		user_id UUID,
		full_name STRING NOT NULL,
		email STRING NOT NULL,
		phone_number STRING NOT NULL,
		street_address1 STRING NOT NULL,
		street_address2 STRING NOT NULL DEFAULT '',
		town_or_city STRING NOT NULL,
		county STRING NOT NULL DEFAULT '',
		postcode STRING NOT NULL DEFAULT '',
		country STRING NOT NULL,
		subtotal DECIMAL(10,2) NOT NULL,
		delivery_cost DECIMAL(10,2) NOT NULL,
		grand_total DECIMAL(10,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE order_line_items (
		order_id UUID NOT NULL REFERENCES orders (id),
		position INT NOT NULL,
		kind STRING NOT NULL CHECK (kind IN ('product', 'membership')),
		item_id UUID NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price DECIMAL(10,2) NOT NULL,
		line_total DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE class_schedules (
		id UUID PRIMARY KEY,
		class_name STRING NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		capacity INT NOT NULL,
		available_spots INT NOT NULL CHECK (available_spots >= 0),
		is_active BOOL NOT NULL DEFAULT true
	)`,
	`CREATE TABLE bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		schedule_id UUID NOT NULL REFERENCES class_schedules (id),
		status STRING NOT NULL CHECK (status IN ('confirmed', 'cancelled', 'attended', 'no_show')),
		notes STRING NOT NULL DEFAULT '',
		booked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX active_booking_per_user ON bookings (user_id, schedule_id)
		WHERE status IN ('confirmed', 'attended')`,
	`CREATE TABLE user_memberships (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		tier_id UUID NOT NULL,
		is_active BOOL NOT NULL DEFAULT true,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE outbox (
		id UUID PRIMARY KEY,
		aggregate_type STRING NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type STRING NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status STRING NOT NULL,
		dedupe_key STRING NOT NULL
	)`,
}

func TestIntegration_CheckoutWebhookBooking(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	free, _ := decimal.NewFromString("50")
	standard, _ := decimal.NewFromString("4.99")
	cfg := &config.Config{
		CRDBDSN:               "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/defaultdb?sslmode=disable",
		MongoURI:              "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:             redisHost + ":" + redisPort.Port(),
		RabbitURL:             "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		OTLPEndpoint:          "", // Skip otel for test
		FreeDeliveryThreshold: free,
		StandardDeliveryCost:  standard,
		OracleAttempts:        2,
		OracleDelay:           100 * time.Millisecond,
		IdempotencyTTL:        time.Hour,
		MembershipTTL:         time.Minute,
	}

	// Setup dependencies
	pool, err := crdb.NewPool(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("fcb")
	logger := observability.NewLogger()
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}
	notifier := notify.NewRabbitNotifier(rabbitPub)

	initiator := checkout.NewInitiator(repo, catalog, audit, logger, cfg.FreeDeliveryThreshold, cfg.StandardDeliveryCost)
	oracle := checkout.NewOracle(repo, cfg.OracleAttempts, cfg.OracleDelay, logger)
	reconciler := checkout.NewReconciler(repo, catalog, oracle, notifier, audit, logger, cfg.FreeDeliveryThreshold, cfg.StandardDeliveryCost)
	entitlement := membership.NewChecker(repo, redisCache, cfg.MembershipTTL, logger)
	bookings := booking.NewService(repo, entitlement, logger)

	handlers := httphandler.NewHandlers(cfg, initiator, reconciler, bookings, idemp)
	router := httphandler.SetupRouter(handlers, logger, rl, idemp)

	// Start server
	srv := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Error(err)
		}
	}()
	defer srv.Shutdown(ctx)
	time.Sleep(100 * time.Millisecond)

	// Seed catalog and membership
	productID := uuid.New()
	if err := catalog.CreateProduct(ctx, mongoadapter.ProductDoc{
		ID: productID, Name: "yoga mat", Price: "19.99", IsActive: true,
	}); err != nil {
		t.Fatal(err)
	}
	userID := uuid.New()
	scheduleID := uuid.New()
	if _, err := pool.Exec(ctx, `
		INSERT INTO class_schedules (id, class_name, starts_at, capacity, available_spots, is_active)
		VALUES ($1, 'spin', $2, 10, 10, true)
	`, scheduleID, time.Now().UTC().Add(48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO user_memberships (id, user_id, tier_id, is_active)
		VALUES ($1, $2, $3, true)
	`, uuid.New(), userID, uuid.New()); err != nil {
		t.Fatal(err)
	}

	billing := map[string]interface{}{
		"full_name":       "Jane Doe",
		"email":           "jane@example.com",
		"phone_number":    "0871234567",
		"street_address1": "1 Main St",
		"town_or_city":    "Dublin",
		"country":         "IE",
	}

	// Sync checkout
	checkoutReq := map[string]interface{}{
		"billing": billing,
		"lines": []map[string]interface{}{
			{"item_id": productID.String(), "kind": "product", "quantity": 2},
		},
		"user_id": userID.String(),
	}
	checkoutBody, _ := json.Marshal(checkoutReq)
	idempKey := uuid.New().String()
	req, _ := http.NewRequest("POST", "http://localhost:8080/v1/checkout", bytes.NewReader(checkoutBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout failed: %v, status: %d", err, resp.StatusCode)
	}
	var checkoutResp struct {
		OrderNumber string `json:"order_number"`
		GrandTotal  string `json:"grand_total"`
	}
	json.NewDecoder(resp.Body).Decode(&checkoutResp)
	if checkoutResp.GrandTotal != "44.97" {
		t.Errorf("expected grand total 44.97, got %s", checkoutResp.GrandTotal)
	}

	// Replaying the same key returns the stored response, no second order
	req, _ = http.NewRequest("POST", "http://localhost:8080/v1/checkout", bytes.NewReader(checkoutBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempKey)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout replay failed: %v, status: %d", err, resp.StatusCode)
	}
	var replayResp struct {
		OrderNumber string `json:"order_number"`
	}
	json.NewDecoder(resp.Body).Decode(&replayResp)
	if replayResp.OrderNumber != checkoutResp.OrderNumber {
		t.Errorf("replay returned a different order: %s vs %s", replayResp.OrderNumber, checkoutResp.OrderNumber)
	}

	// The provider webhook for the same payment matches the existing order
	webhookReq := map[string]interface{}{
		"type":            "payment_intent.succeeded",
		"intent_id":       "pi_test_1",
		"amount":          4497,
		"billing_details": billing,
		"items": []map[string]interface{}{
			{"item_id": productID.String(), "kind": "product", "quantity": 2},
		},
	}
	webhookBody, _ := json.Marshal(webhookReq)
	req, _ = http.NewRequest("POST", "http://localhost:8080/v1/payments/webhook", bytes.NewReader(webhookBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook failed: %v, status: %d", err, resp.StatusCode)
	}

	var orderCount int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatal(err)
	}
	if orderCount != 1 {
		t.Fatalf("webhook for an already-created payment must not add an order, got %d", orderCount)
	}

	// A webhook with no prior checkout creates the order itself
	webhookReq["intent_id"] = "pi_test_2"
	webhookReq["billing_details"] = map[string]interface{}{
		"full_name":       "Sam Roe",
		"email":           "sam@example.com",
		"phone_number":    "0867654321",
		"street_address1": "2 High St",
		"town_or_city":    "Cork",
		"country":         "IE",
	}
	webhookBody, _ = json.Marshal(webhookReq)
	req, _ = http.NewRequest("POST", "http://localhost:8080/v1/payments/webhook", bytes.NewReader(webhookBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook create failed: %v, status: %d", err, resp.StatusCode)
	}
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatal(err)
	}
	if orderCount != 2 {
		t.Fatalf("expected the unmatched webhook to create an order, got %d total", orderCount)
	}

	// Order lookup
	req, _ = http.NewRequest("GET", "http://localhost:8080/v1/orders/"+checkoutResp.OrderNumber, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get order failed: %v, status: %d", err, resp.StatusCode)
	}

	// Booking flow
	bookingReq := map[string]interface{}{
		"user_id":     userID.String(),
		"schedule_id": scheduleID.String(),
	}
	bookingBody, _ := json.Marshal(bookingReq)
	req, _ = http.NewRequest("POST", "http://localhost:8080/v1/bookings", bytes.NewReader(bookingBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("booking failed: %v, status: %d", err, resp.StatusCode)
	}
	var bookingResp struct {
		BookingID      uuid.UUID `json:"booking_id"`
		AvailableSpots int       `json:"available_spots"`
	}
	json.NewDecoder(resp.Body).Decode(&bookingResp)
	if bookingResp.AvailableSpots != 9 {
		t.Errorf("expected 9 spots left, got %d", bookingResp.AvailableSpots)
	}

	// Booking the same class again is a conflict
	req, _ = http.NewRequest("POST", "http://localhost:8080/v1/bookings", bytes.NewReader(bookingBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected duplicate booking conflict, got: %v, status: %d", err, resp.StatusCode)
	}

	// Cancel, then cancel again: second one is a warning, not an error
	cancelBody, _ := json.Marshal(map[string]interface{}{"user_id": userID.String()})
	cancelURL := "http://localhost:8080/v1/bookings/" + bookingResp.BookingID.String() + "/cancel"
	for i := 0; i < 2; i++ {
		req, _ = http.NewRequest("POST", cancelURL, bytes.NewReader(cancelBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.New().String())
		resp, err = http.DefaultClient.Do(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("cancel %d failed: %v, status: %d", i+1, err, resp.StatusCode)
		}
	}
	var spots int
	if err := pool.QueryRow(ctx, `SELECT available_spots FROM class_schedules WHERE id = $1`, scheduleID).Scan(&spots); err != nil {
		t.Fatal(err)
	}
	if spots != 10 {
		t.Errorf("double cancel must restore the seat exactly once, got %d spots", spots)
	}
}
