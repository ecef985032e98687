package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id points at no document.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSessionNotFound is returned when a session has vanished or never existed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotJoinable means the session is past waiting or closed to joins.
	ErrSessionNotJoinable = errors.New("session is not open to join")
	// ErrSessionFull means joinedCount already reached maxPlayers.
	ErrSessionFull = errors.New("session is full")
	// ErrNotParticipant is returned when leave is called for a non-member.
	ErrNotParticipant = errors.New("not a participant of this session")
	// ErrNotSessionHost rejects session-wide writes from anyone but the creating host.
	ErrNotSessionHost = errors.New("writer is not the session host")
	// ErrIllegalTransition rejects a status write that skips or reverses the lifecycle.
	ErrIllegalTransition = errors.New("illegal session status transition")
	// ErrQuestionNotFound indicates a question id missing from the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionsExhausted signals advancement past the last selected question.
	ErrQuestionsExhausted = errors.New("no questions remain in the sequence")
	// ErrQuestionsAlreadySelected guards the one-shot question selection write.
	ErrQuestionsAlreadySelected = errors.New("questions already selected for session")
	// ErrEmptyQuestionBank means the bank has no questions to sample from.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
)
