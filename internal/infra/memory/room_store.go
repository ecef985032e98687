package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
)

// RoomStore is the in-memory rooms collection: snapshot listing, reserve and
// release flag writes, and push subscriptions on the whole collection or a
// single document. Subscriptions deliver full replacement values, and a
// single-room watcher receives a nil-room snapshot when the document is
// deleted so stale clients can self-correct.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[string]domain.Room
	listWatchers map[chan []domain.Room]struct{}
	roomWatchers map[string]map[chan app.RoomSnapshot]struct{}
	now          func() time.Time
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:        make(map[string]domain.Room),
		listWatchers: make(map[chan []domain.Room]struct{}),
		roomWatchers: make(map[string]map[chan app.RoomSnapshot]struct{}),
		now:          time.Now,
	}
}

func (s *RoomStore) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = s.now()
	}
	s.rooms[room.ID] = room
	s.notifyLocked(room.ID)
	return nil
}

func (s *RoomStore) ListRooms(_ context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *RoomStore) SubscribeRooms(_ context.Context) (<-chan []domain.Room, func(), error) {
	ch := make(chan []domain.Room, 8)

	s.mu.Lock()
	s.listWatchers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.listWatchers[ch]; ok {
			delete(s.listWatchers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) SubscribeRoom(_ context.Context, roomID string) (<-chan app.RoomSnapshot, func(), error) {
	ch := make(chan app.RoomSnapshot, 8)

	s.mu.Lock()
	watchers, ok := s.roomWatchers[roomID]
	if !ok {
		watchers = make(map[chan app.RoomSnapshot]struct{})
		s.roomWatchers[roomID] = watchers
	}
	watchers[ch] = struct{}{}
	initial := s.roomSnapshotLocked(roomID)
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if watchers, ok := s.roomWatchers[roomID]; ok {
			if _, ok := watchers[ch]; ok {
				delete(watchers, ch)
				close(ch)
			}
			if len(watchers) == 0 {
				delete(s.roomWatchers, roomID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) SetInUse(_ context.Context, roomID string, inUse bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.IsUse = inUse
	s.rooms[roomID] = room
	s.notifyLocked(roomID)
	return nil
}

// DeleteRoom removes the document; watchers of that room observe a nil-room
// snapshot, the "document does not exist" signal.
func (s *RoomStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, roomID)
	s.notifyLocked(roomID)
	return nil
}

func (s *RoomStore) snapshotLocked() []domain.Room {
	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

func (s *RoomStore) roomSnapshotLocked(roomID string) app.RoomSnapshot {
	if room, ok := s.rooms[roomID]; ok {
		copied := room
		return app.RoomSnapshot{Room: &copied}
	}
	return app.RoomSnapshot{}
}

func (s *RoomStore) notifyLocked(roomID string) {
	list := s.snapshotLocked()
	for ch := range s.listWatchers {
		sendLatest(ch, list)
	}
	snap := s.roomSnapshotLocked(roomID)
	for ch := range s.roomWatchers[roomID] {
		sendLatest(ch, snap)
	}
}

// sendLatest drops the oldest buffered value so slow subscribers only lose
// intermediate states, never block the writer.
func sendLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}
