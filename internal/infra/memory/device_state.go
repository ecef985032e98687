package memory

import (
	"context"
	"sync"
)

// DeviceStateStore is the in-memory persisted key-value store behind the
// clients' cached "current room" pointers.
type DeviceStateStore struct {
	mu    sync.RWMutex
	rooms map[string]string
}

func NewDeviceStateStore() *DeviceStateStore {
	return &DeviceStateStore{rooms: make(map[string]string)}
}

func (s *DeviceStateStore) CurrentRoom(_ context.Context, deviceKey string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roomID, ok := s.rooms[deviceKey]
	return roomID, ok, nil
}

func (s *DeviceStateStore) SetCurrentRoom(_ context.Context, deviceKey, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[deviceKey] = roomID
	return nil
}

func (s *DeviceStateStore) ClearCurrentRoom(_ context.Context, deviceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, deviceKey)
	return nil
}
