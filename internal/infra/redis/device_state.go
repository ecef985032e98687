package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeviceStateStore persists each device's "current room" pointer in Redis so a
// reconnecting client can resume the game it was in.
type DeviceStateStore struct {
	client    *redis.Client
	ttl       time.Duration
	suspended atomic.Bool
}

func NewDeviceStateStore(client *redis.Client, ttl time.Duration) *DeviceStateStore {
	return &DeviceStateStore{client: client, ttl: ttl}
}

// Suspend makes pointer writes best-effort no-ops; reads keep working.
func (s *DeviceStateStore) Suspend() { s.suspended.Store(true) }

// Resume re-enables pointer writes.
func (s *DeviceStateStore) Resume() { s.suspended.Store(false) }

func (s *DeviceStateStore) CurrentRoom(ctx context.Context, deviceKey string) (string, bool, error) {
	roomID, err := s.client.Get(ctx, s.key(deviceKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}

func (s *DeviceStateStore) SetCurrentRoom(ctx context.Context, deviceKey, roomID string) error {
	if s.suspended.Load() {
		return nil
	}
	return s.client.Set(ctx, s.key(deviceKey), roomID, s.ttl).Err()
}

func (s *DeviceStateStore) ClearCurrentRoom(ctx context.Context, deviceKey string) error {
	if s.suspended.Load() {
		return nil
	}
	return s.client.Del(ctx, s.key(deviceKey)).Err()
}

func (s *DeviceStateStore) key(deviceKey string) string {
	return "device:" + deviceKey + ":room"
}
