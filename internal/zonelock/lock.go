package zonelock

import (
	"context"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "zone_lock:"

// Locker serializes admission decisions per zone. Whoever holds a zone's key
// owns the capacity check-and-insert for that zone until release or TTL.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{Client: client, TTL: ttl}
}

// LockZone acquires the admission lock for a single zone on behalf of the
// given payment group. Returns false when another purchase already holds it.
func (l *Locker) LockZone(ctx context.Context, zoneID, groupRef string) (bool, error) {
	return l.Client.SetNX(ctx, keyPrefix+zoneID, groupRef, l.TTL).Result()
}

// UnlockZone releases the lock only if this payment group still owns it; a
// lock that expired and was re-acquired by someone else is left alone.
func (l *Locker) UnlockZone(ctx context.Context, zoneID, groupRef string) error {
	key := keyPrefix + zoneID
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == groupRef {
		_, err = l.Client.Del(ctx, key).Result()
	}
	return err
}

// LockZones acquires every zone of a batch purchase or none. Zones are taken
// in sorted order so two batches over the same zones cannot deadlock each
// other into mutual partial acquisition.
func (l *Locker) LockZones(ctx context.Context, zoneIDs []string, groupRef string) (bool, error) {
	ordered := append([]string(nil), zoneIDs...)
	sort.Strings(ordered)

	locked := make([]string, 0, len(ordered))
	for _, zoneID := range ordered {
		ok, err := l.LockZone(ctx, zoneID, groupRef)
		if err != nil || !ok {
			for _, z := range locked {
				_ = l.UnlockZone(ctx, z, groupRef)
			}
			return false, err
		}
		locked = append(locked, zoneID)
	}
	return true, nil
}

// UnlockZones releases a batch of zone locks, reporting the first error.
func (l *Locker) UnlockZones(ctx context.Context, zoneIDs []string, groupRef string) error {
	var firstErr error
	for _, zoneID := range zoneIDs {
		if err := l.UnlockZone(ctx, zoneID, groupRef); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
