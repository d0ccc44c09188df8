package zonelock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis brings up a disposable Redis container for the test.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockZonesIntegration(t *testing.T) {
	client := startRedis(t)
	locker := NewLocker(client, 30*time.Second)
	ctx := context.Background()

	zones := []string{"zone-a", "zone-b", "zone-c"}

	locked, err := locker.LockZones(ctx, zones, "PAY-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// A second purchase over any of the same zones is refused.
	locked, err = locker.LockZones(ctx, []string{"zone-b"}, "PAY-2")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, locker.UnlockZones(ctx, zones, "PAY-1"))

	locked, err = locker.LockZones(ctx, []string{"zone-b"}, "PAY-2")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestPartialAcquisitionRollsBack(t *testing.T) {
	client := startRedis(t)
	locker := NewLocker(client, 30*time.Second)
	ctx := context.Background()

	// PAY-1 holds zone-b, so PAY-2's batch over a, b, c must fail and leave
	// zone-a free.
	locked, err := locker.LockZones(ctx, []string{"zone-b"}, "PAY-1")
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = locker.LockZones(ctx, []string{"zone-a", "zone-b", "zone-c"}, "PAY-2")
	require.NoError(t, err)
	assert.False(t, locked)

	locked, err = locker.LockZones(ctx, []string{"zone-a", "zone-c"}, "PAY-3")
	require.NoError(t, err)
	assert.True(t, locked, "a failed batch must release its partial locks")
}

func TestUnlockIgnoresForeignOwner(t *testing.T) {
	client := startRedis(t)
	locker := NewLocker(client, 30*time.Second)
	ctx := context.Background()

	locked, err := locker.LockZone(ctx, "zone-a", "PAY-1")
	require.NoError(t, err)
	require.True(t, locked)

	// PAY-2 never owned the lock; releasing must not free PAY-1's hold.
	require.NoError(t, locker.UnlockZone(ctx, "zone-a", "PAY-2"))

	locked, err = locker.LockZone(ctx, "zone-a", "PAY-3")
	require.NoError(t, err)
	assert.False(t, locked)
}
