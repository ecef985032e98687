package redis

import (
	"context"
	"testing"
	"time"

	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestDeviceStateRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDeviceStateStore(newClient(mr), time.Minute)

	if _, ok, err := store.CurrentRoom(ctx, "dev-1"); err != nil || ok {
		t.Fatalf("expected no pointer, got ok=%v err=%v", ok, err)
	}

	if err := store.SetCurrentRoom(ctx, "dev-1", "room-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	roomID, ok, err := store.CurrentRoom(ctx, "dev-1")
	if err != nil || !ok || roomID != "room-1" {
		t.Fatalf("expected room-1, got %q ok=%v err=%v", roomID, ok, err)
	}

	if err := store.ClearCurrentRoom(ctx, "dev-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.CurrentRoom(ctx, "dev-1"); ok {
		t.Fatalf("expected cleared pointer")
	}
}

func TestDeviceStateSuspendedWritesAreNoOps(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDeviceStateStore(newClient(mr), time.Minute)
	store.Suspend()

	if err := store.SetCurrentRoom(ctx, "dev-1", "room-1"); err != nil {
		t.Fatalf("suspended set: %v", err)
	}
	if _, ok, _ := store.CurrentRoom(ctx, "dev-1"); ok {
		t.Fatalf("suspended write must not persist")
	}
}

func TestRoomLivenessMarkers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	inner := memory.NewRoomStore()
	if err := inner.CreateRoom(ctx, domain.Room{ID: "room-1", Name: "Sala 1"}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	live := NewRoomLiveness(inner, newClient(mr), time.Minute)

	if err := live.SetInUse(ctx, "room-1", true); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !mr.Exists("room:live:room-1") {
		t.Fatalf("expected liveness marker after reserve")
	}

	marks, err := live.LiveRooms(ctx, []domain.Room{{ID: "room-1"}, {ID: "room-2"}})
	if err != nil {
		t.Fatalf("live rooms: %v", err)
	}
	if !marks["room-1"] || marks["room-2"] {
		t.Fatalf("unexpected liveness map: %+v", marks)
	}

	if err := live.SetInUse(ctx, "room-1", false); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("room:live:room-1") {
		t.Fatalf("release must drop the marker")
	}
}
