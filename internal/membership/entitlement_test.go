package membership_test

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/fitlife/checkout-and-bookings/internal/adapters/redis"
	"github.com/fitlife/checkout-and-bookings/internal/membership"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type countingSource struct {
	calls  int
	active bool
}

func (s *countingSource) HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.calls++
	return s.active, nil
}

func setupCache(t *testing.T) *redisadapter.Cache {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
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
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	client := redisclient.NewClient(&redisclient.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })
	return redisadapter.NewCache(client)
}

func TestChecker_CachesLookups(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	cache := setupCache(t)
	source := &countingSource{active: true}
	checker := membership.NewChecker(source, cache, time.Minute, observability.NewLogger())
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		active, err := checker.HasActiveMembership(ctx, userID)
		if err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if !active {
			t.Fatalf("check %d: expected active membership", i+1)
		}
	}
	if source.calls != 1 {
		t.Errorf("expected a single source lookup, got %d", source.calls)
	}
}

func TestChecker_CachesNegatives(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	cache := setupCache(t)
	source := &countingSource{active: false}
	checker := membership.NewChecker(source, cache, time.Minute, observability.NewLogger())
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		active, err := checker.HasActiveMembership(ctx, userID)
		if err != nil {
			t.Fatal(err)
		}
		if active {
			t.Fatal("expected no membership")
		}
	}
	if source.calls != 1 {
		t.Errorf("expected the negative to be cached, got %d source lookups", source.calls)
	}
}
