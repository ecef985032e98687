package app

import (
	"context"

	"mente-maestra/internal/domain"
)

// RoomSnapshot is one push update for a single room. Room == nil is the
// explicit "document does not exist" signal (forced release / deletion),
// distinct from a subscription error.
type RoomSnapshot struct {
	Room *domain.Room
}

// RoomRepository abstracts the rooms collection of the document store.
type RoomRepository interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	// SubscribeRooms delivers full replacement lists, not deltas.
	SubscribeRooms(ctx context.Context) (<-chan []domain.Room, func(), error)
	SubscribeRoom(ctx context.Context, roomID string) (<-chan RoomSnapshot, func(), error)
	SetInUse(ctx context.Context, roomID string, inUse bool) error
	CreateRoom(ctx context.Context, room domain.Room) error
}

// SessionSnapshot is one push update for a session document plus its
// participants, ordered by position. Session == nil signals deletion.
type SessionSnapshot struct {
	Session *domain.SessionWithParticipants
}

// SessionTx is the read-modify-write surface available inside a session
// transaction. Staged writes are applied all-or-nothing on commit.
type SessionTx interface {
	Session() domain.GameSession
	Participants() []domain.Participant
	UpdateSession(mutate func(*domain.GameSession))
	CreateParticipant(p domain.Participant)
	DeleteParticipant(participantID string)
}

// SessionRepository abstracts the sessions sub-collection of a room, including
// the serializable transactions the join/leave counter depends on.
type SessionRepository interface {
	// FindCurrent returns the newest non-ended session of a room, or
	// ErrSessionNotFound when none exists.
	FindCurrent(ctx context.Context, roomID string) (domain.GameSession, error)
	FindMostRecentEnded(ctx context.Context, roomID string) (domain.GameSession, error)
	Create(ctx context.Context, session domain.GameSession) error
	Get(ctx context.Context, roomID, sessionID string) (domain.GameSession, error)
	Tx(ctx context.Context, roomID, sessionID string, fn func(tx SessionTx) error) error
	Subscribe(ctx context.Context, roomID, sessionID string) (<-chan SessionSnapshot, func(), error)
	// DeleteNonEnded removes every non-ended session and its sub-collections
	// across all rooms, returning the number of sessions deleted.
	DeleteNonEnded(ctx context.Context) (int, error)
}

// AnswerRepository stores per-question answers under a session. Writes are
// keyed by (participant, question): a second submission replaces the first.
type AnswerRepository interface {
	UpsertAnswer(ctx context.Context, roomID, sessionID string, answer domain.ParticipantAnswer) error
	QuestionAnswers(ctx context.Context, roomID, sessionID, questionID string) ([]domain.ParticipantAnswer, error)
	AllAnswers(ctx context.Context, roomID, sessionID string) ([]domain.ParticipantAnswer, error)
	// SubscribeQuestionAnswers pushes the full answer set for one question
	// every time it changes; the derived count is len of the slice.
	SubscribeQuestionAnswers(ctx context.Context, roomID, sessionID, questionID string) (<-chan []domain.ParticipantAnswer, func(), error)
}

// QuestionRepository loads the static question bank (from cache/backing store).
type QuestionRepository interface {
	Bank(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// ScoreArchive persists final per-session results for the admin screens.
type ScoreArchive interface {
	SaveScore(ctx context.Context, score domain.UserScore) (string, error)
	UserHistory(ctx context.Context, userID string) ([]domain.UserScore, error)
	RoomLeaderboard(ctx context.Context, roomID string, limit int) ([]domain.UserScore, error)
	AllScores(ctx context.Context) ([]domain.UserScore, error)
	AlreadyPlayed(ctx context.Context, userDocument string) (bool, error)
}

// RoomLivenessLister reports which reserved rooms still hold an unexpired
// liveness marker, for the operator room listing.
type RoomLivenessLister interface {
	LiveRooms(ctx context.Context, rooms []domain.Room) (map[string]bool, error)
}

// NetworkToggler pauses and resumes a layer's best-effort network writes.
// Suspended layers skip their writes; reads and subscriptions keep working.
type NetworkToggler interface {
	Suspend()
	Resume()
}

// DeviceStateStore is the persisted key-value port behind the clients' cached
// "current room" pointers. Business logic never talks to storage directly.
type DeviceStateStore interface {
	CurrentRoom(ctx context.Context, deviceKey string) (string, bool, error)
	SetCurrentRoom(ctx context.Context, deviceKey, roomID string) error
	ClearCurrentRoom(ctx context.Context, deviceKey string) error
}
