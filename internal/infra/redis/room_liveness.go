package redis

import (
	"context"
	"sync/atomic"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RoomLiveness decorates a RoomRepository with Redis liveness markers for
// reserved rooms. The marker expires on its own, so a screen that crashed while
// holding a room does not leave a stale reservation visible to operators.
// Notes:
//   - Subscriptions and reads pass straight through to the wrapped store.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out room updates across instances.
type RoomLiveness struct {
	app.RoomRepository

	client    *redis.Client
	ttl       time.Duration
	suspended atomic.Bool
}

func NewRoomLiveness(inner app.RoomRepository, client *redis.Client, ttl time.Duration) *RoomLiveness {
	return &RoomLiveness{RoomRepository: inner, client: client, ttl: ttl}
}

// Suspend drops the marker writes; the wrapped store keeps working untouched.
func (l *RoomLiveness) Suspend() { l.suspended.Store(true) }

// Resume re-enables marker writes.
func (l *RoomLiveness) Resume() { l.suspended.Store(false) }

func (l *RoomLiveness) SetInUse(ctx context.Context, roomID string, inUse bool) error {
	if err := l.RoomRepository.SetInUse(ctx, roomID, inUse); err != nil {
		return err
	}
	if l.suspended.Load() {
		return nil
	}
	// best-effort liveness marker
	if inUse {
		_ = l.client.Set(ctx, l.key(roomID), "1", l.ttl).Err()
	} else {
		_ = l.client.Del(ctx, l.key(roomID)).Err()
	}
	return nil
}

// LiveRooms reports which of the given rooms carry an unexpired reservation
// marker.
func (l *RoomLiveness) LiveRooms(ctx context.Context, rooms []domain.Room) (map[string]bool, error) {
	live := make(map[string]bool, len(rooms))
	if len(rooms) == 0 {
		return live, nil
	}
	pipe := l.client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(rooms))
	for _, room := range rooms {
		cmds[room.ID] = pipe.Exists(ctx, l.key(room.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for id, cmd := range cmds {
		live[id] = cmd.Val() > 0
	}
	return live, nil
}

func (l *RoomLiveness) key(roomID string) string {
	return "room:live:" + roomID
}
