package app

import (
	"context"

	"mente-maestra/internal/domain"
)

// RoomService exposes the room registry: listing, live subscriptions, and the
// reserve/release flag writes. Both writes are unconditional; no ownership
// token is modeled at the room level (the session host token covers writes).
type RoomService struct {
	rooms RoomRepository
}

func NewRoomService(rooms RoomRepository) *RoomService {
	return &RoomService{rooms: rooms}
}

func (s *RoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.ListRooms(ctx)
}

func (s *RoomService) SubscribeRooms(ctx context.Context) (<-chan []domain.Room, func(), error) {
	return s.rooms.SubscribeRooms(ctx)
}

// SubscribeRoom delivers push updates for one room. A snapshot with a nil Room
// means the document was deleted; callers holding a cached copy must clear it
// and navigate back to room selection.
func (s *RoomService) SubscribeRoom(ctx context.Context, roomID string) (<-chan RoomSnapshot, func(), error) {
	return s.rooms.SubscribeRoom(ctx, roomID)
}

func (s *RoomService) Reserve(ctx context.Context, roomID string) error {
	return s.rooms.SetInUse(ctx, roomID, true)
}

func (s *RoomService) Release(ctx context.Context, roomID string) error {
	return s.rooms.SetInUse(ctx, roomID, false)
}
