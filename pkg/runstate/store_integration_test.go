//go:build integration

package runstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client, err := NewRedisClient("redis://" + endpoint + "/0")
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestStore_Integration_LockLifecycle(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(redisClient)

	ok, err := store.Acquire(ctx, "run-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected first acquire to succeed")
	}

	ok, err = store.Acquire(ctx, "run-2")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if ok {
		t.Error("Expected second acquire to fail while run-1 holds the lock")
	}

	// Releasing with the wrong owner must not drop the lock.
	if err := store.Release(ctx, "run-2"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	holder, err := redisClient.Get(ctx, RedisKeyLock).Result()
	if err != nil {
		t.Fatalf("Get lock failed: %v", err)
	}
	if holder != "run-1" {
		t.Errorf("Expected lock holder run-1, got %q", holder)
	}

	if err := store.Release(ctx, "run-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	exists, err := redisClient.Exists(ctx, RedisKeyLock).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists != 0 {
		t.Error("Expected lock to be released")
	}
}

func TestStore_Integration_LockExpires(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(redisClient)
	store.SetLockTTL(time.Second)

	if ok, err := store.Acquire(ctx, "stale"); err != nil || !ok {
		t.Fatalf("Acquire failed: ok=%v err=%v", ok, err)
	}

	time.Sleep(1500 * time.Millisecond)

	ok, err := store.Acquire(ctx, "fresh")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Error("Expected acquire to succeed after the stale lock expired")
	}
}

func TestStore_Integration_LastRun(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(redisClient)

	if _, err := store.LastRun(ctx); !errors.Is(err, ErrNoRun) {
		t.Fatalf("Expected ErrNoRun, got %v", err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	summary := Summary{
		RunID:      "run-1",
		Status:     StatusSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Fetched:    120,
		Written:    120,
		OutputPath: "upmind_clients_import.csv",
	}
	if err := store.Record(ctx, summary); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if got.RunID != summary.RunID || got.Fetched != 120 || got.Written != 120 {
		t.Errorf("Unexpected summary: %+v", got)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("Expected duration 3s, got %s", got.Duration())
	}
}
