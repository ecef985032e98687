package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
)

func newSessionFixture(t *testing.T, maxPlayers int) (*app.SessionService, domain.GameSession) {
	t.Helper()
	service := app.NewSessionService(memory.NewSessionStore())
	session, err := service.FindOrCreate(context.Background(), "room-1", "host-1", maxPlayers)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return service, session
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 3)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Join(ctx, "room-1", session.ID, domain.User{
				ID:       fmt.Sprintf("u%d", i),
				Username: fmt.Sprintf("user-%d", i),
			})
		}(i)
	}
	wg.Wait()

	joined, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, domain.ErrSessionFull):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if joined != 3 || full != 7 {
		t.Fatalf("expected 3 joins and 7 rejections, got %d/%d", joined, full)
	}

	current, err := service.FindCurrent(ctx, "room-1")
	if err != nil {
		t.Fatalf("find current: %v", err)
	}
	if current.JoinedCount != 3 {
		t.Fatalf("expected joinedCount 3, got %d", current.JoinedCount)
	}
}

func TestJoinIsIdempotentPerUser(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 3)

	first, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "u1", Username: "Ana"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	second, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "u1", Username: "Ana"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("rejoin must return the existing participant, got %s vs %s", first.ID, second.ID)
	}

	current, _ := service.FindCurrent(ctx, "room-1")
	if current.JoinedCount != 1 {
		t.Fatalf("rejoin must not touch the counter, got %d", current.JoinedCount)
	}
}

func TestLeaveFreesSlotAndReopens(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 2)

	if _, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "u1", Username: "Ana"}); err != nil {
		t.Fatalf("join u1: %v", err)
	}
	if _, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "u2", Username: "Leo"}); err != nil {
		t.Fatalf("join u2: %v", err)
	}

	if err := service.Leave(ctx, "room-1", session.ID, "u1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	current, _ := service.FindCurrent(ctx, "room-1")
	if current.JoinedCount != 1 || !current.IsOpenToJoin {
		t.Fatalf("expected reopened session with 1 player, got count=%d open=%v", current.JoinedCount, current.IsOpenToJoin)
	}

	if _, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "u3", Username: "Mia"}); err != nil {
		t.Fatalf("freed slot must be joinable: %v", err)
	}

	if err := service.Leave(ctx, "room-1", session.ID, "u1"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestUpdateAsHostRejectsOtherWriters(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 2)

	_, err := service.UpdateAsHost(ctx, "room-1", session.ID, "intruder", func(sess *domain.GameSession) {
		sess.Status = domain.StatusCountdown
	})
	if !errors.Is(err, domain.ErrNotSessionHost) {
		t.Fatalf("expected ErrNotSessionHost, got %v", err)
	}

	current, _ := service.FindCurrent(ctx, "room-1")
	if current.Status != domain.StatusWaiting {
		t.Fatalf("rejected write must not change status, got %s", current.Status)
	}
}

func TestStatusTransitionsFollowTheMachine(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 2)

	_, err := service.UpdateAsHost(ctx, "room-1", session.ID, "host-1", func(sess *domain.GameSession) {
		sess.Status = domain.StatusQuestion
	})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("waiting->question must be illegal, got %v", err)
	}

	for _, next := range []domain.SessionStatus{
		domain.StatusCountdown,
		domain.StatusQuestion,
		domain.StatusFeedback,
		domain.StatusCountdown, // looping back while questions remain
		domain.StatusQuestion,
		domain.StatusFeedback,
		domain.StatusPodium,
		domain.StatusEnded,
	} {
		if _, err := service.UpdateAsHost(ctx, "room-1", session.ID, "host-1", func(sess *domain.GameSession) {
			sess.Status = next
		}); err != nil {
			t.Fatalf("legal transition to %s failed: %v", next, err)
		}
	}
}

func TestClosedSessionRejectsJoins(t *testing.T) {
	ctx := context.Background()
	service, session := newSessionFixture(t, 3)

	if _, err := service.UpdateAsHost(ctx, "room-1", session.ID, "host-1", func(sess *domain.GameSession) {
		sess.Status = domain.StatusCountdown
		sess.IsOpenToJoin = false
	}); err != nil {
		t.Fatalf("close session: %v", err)
	}

	_, err := service.Join(ctx, "room-1", session.ID, domain.User{ID: "late", Username: "Late"})
	if !errors.Is(err, domain.ErrSessionNotJoinable) {
		t.Fatalf("expected ErrSessionNotJoinable, got %v", err)
	}
}
