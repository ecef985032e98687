package app

import (
	"context"
	"errors"
	"time"

	"mente-maestra/internal/domain"

	"github.com/google/uuid"
)

// SessionService owns the session lifecycle: creation, the transactional
// join/leave protocol, host-guarded status writes, and bulk cleanup.
type SessionService struct {
	sessions SessionRepository
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository) *SessionService {
	return &SessionService{sessions: sessions, now: time.Now}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(sessions SessionRepository, now func() time.Time) *SessionService {
	return &SessionService{sessions: sessions, now: now}
}

// FindOrCreate returns the room's newest non-ended session, creating a fresh
// waiting session owned by hostID when none exists.
func (s *SessionService) FindOrCreate(ctx context.Context, roomID, hostID string, maxPlayers int) (domain.GameSession, error) {
	existing, err := s.sessions.FindCurrent(ctx, roomID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.GameSession{}, err
	}

	session := domain.GameSession{
		ID:                   uuid.NewString(),
		RoomID:               roomID,
		HostID:               hostID,
		Status:               domain.StatusWaiting,
		IsOpenToJoin:         true,
		MaxPlayers:           maxPlayers,
		JoinedCount:          0,
		CreatedAt:            s.now(),
		SelectedQuestionIDs:  []string{},
		CurrentQuestionIndex: -1,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.GameSession{}, err
	}
	return session, nil
}

// FindCurrent returns the newest non-ended session without creating one.
func (s *SessionService) FindCurrent(ctx context.Context, roomID string) (domain.GameSession, error) {
	return s.sessions.FindCurrent(ctx, roomID)
}

// FindMostRecentEnded returns the latest session already at podium or ended.
func (s *SessionService) FindMostRecentEnded(ctx context.Context, roomID string) (domain.GameSession, error) {
	return s.sessions.FindMostRecentEnded(ctx, roomID)
}

// Join enrolls a user into a waiting session. The whole check-and-insert runs
// inside one store transaction so two concurrent joins cannot both take the
// last slot. Rejoining with the same user id returns the existing participant
// without touching the counter.
func (s *SessionService) Join(ctx context.Context, roomID, sessionID string, user domain.User) (domain.Participant, error) {
	var joined domain.Participant
	err := s.sessions.Tx(ctx, roomID, sessionID, func(tx SessionTx) error {
		session := tx.Session()
		if session.Status != domain.StatusWaiting || !session.IsOpenToJoin {
			return domain.ErrSessionNotJoinable
		}
		if session.JoinedCount >= session.MaxPlayers {
			return domain.ErrSessionFull
		}
		for _, p := range tx.Participants() {
			if p.UserID == user.ID {
				joined = p
				return nil
			}
		}
		joined = domain.Participant{
			ID:       uuid.NewString(),
			UserID:   user.ID,
			Username: user.Username,
			Avatar:   user.Avatar,
			JoinedAt: s.now(),
			Position: session.JoinedCount + 1,
		}
		tx.CreateParticipant(joined)
		tx.UpdateSession(func(sess *domain.GameSession) {
			sess.JoinedCount++
		})
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return joined, nil
}

// Leave removes a user's participant record, decrements the counter, and
// reopens the session so a freed slot can be refilled while still waiting.
// Leaving a session one is not part of reports ErrNotParticipant.
func (s *SessionService) Leave(ctx context.Context, roomID, sessionID, userID string) error {
	return s.sessions.Tx(ctx, roomID, sessionID, func(tx SessionTx) error {
		for _, p := range tx.Participants() {
			if p.UserID != userID {
				continue
			}
			tx.DeleteParticipant(p.ID)
			tx.UpdateSession(func(sess *domain.GameSession) {
				sess.JoinedCount--
				sess.IsOpenToJoin = true
			})
			return nil
		}
		return domain.ErrNotParticipant
	})
}

// UpdateAsHost applies a session-wide mutation after verifying the writer is
// the creating host and that any status change follows the state machine.
// This is the guard that makes dual-TV operation fail loudly instead of
// corrupting the shared document.
func (s *SessionService) UpdateAsHost(ctx context.Context, roomID, sessionID, hostID string, mutate func(*domain.GameSession)) (domain.GameSession, error) {
	var updated domain.GameSession
	err := s.sessions.Tx(ctx, roomID, sessionID, func(tx SessionTx) error {
		session := tx.Session()
		if session.HostID != hostID {
			return domain.ErrNotSessionHost
		}
		from := session.Status
		tx.UpdateSession(func(sess *domain.GameSession) {
			mutate(sess)
			updated = *sess
		})
		if updated.Status != from && !domain.CanTransition(from, updated.Status) {
			return domain.ErrIllegalTransition
		}
		return nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	return updated, nil
}

// Subscribe delivers session-plus-participants snapshots; a nil snapshot
// session signals the document was deleted under the subscriber.
func (s *SessionService) Subscribe(ctx context.Context, roomID, sessionID string) (<-chan SessionSnapshot, func(), error) {
	return s.sessions.Subscribe(ctx, roomID, sessionID)
}

// CleanupNonEnded is the administrative bulk operation that removes every
// non-ended session (and its participants and answers) across all rooms.
func (s *SessionService) CleanupNonEnded(ctx context.Context) (int, error) {
	return s.sessions.DeleteNonEnded(ctx)
}
