package domain

import "time"

// SessionStatus is the lifecycle drumbeat every client branches on.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusCountdown SessionStatus = "countdown"
	StatusQuestion  SessionStatus = "question"
	StatusFeedback  SessionStatus = "feedback"
	StatusPodium    SessionStatus = "podium"
	StatusEnded     SessionStatus = "ended"
)

// NonTerminalStatuses enumerates every status except ended, in lifecycle order.
// Used as the fallback "in" filter where a not-equal query is unavailable.
func NonTerminalStatuses() []SessionStatus {
	return []SessionStatus{StatusWaiting, StatusCountdown, StatusQuestion, StatusFeedback, StatusPodium}
}

// CanTransition reports whether moving from one status to the next is legal.
// The only backward edge is feedback -> countdown while questions remain.
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case StatusWaiting:
		return to == StatusCountdown
	case StatusCountdown:
		return to == StatusQuestion
	case StatusQuestion:
		return to == StatusFeedback
	case StatusFeedback:
		return to == StatusCountdown || to == StatusPodium
	case StatusPodium:
		return to == StatusEnded
	}
	return false
}

// Room is a physical play station with an in-use flag. Rooms are seed data;
// reservation and release are plain flag writes.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsUse     bool      `json:"isUse"`
	CreatedAt time.Time `json:"createdAt"`
}

// GameSession is the authoritative state for one game, scoped to a room.
// The TV host is the only writer for status and question progression; players
// only touch the participant and answer sub-collections.
type GameSession struct {
	ID           string        `json:"id"`
	RoomID       string        `json:"roomId"`
	HostID       string        `json:"hostId"`
	Status       SessionStatus `json:"status"`
	IsOpenToJoin bool          `json:"isOpenToJoin"`
	MaxPlayers   int           `json:"maxPlayers"`
	JoinedCount  int           `json:"joinedCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`

	// Question progression. SelectedQuestionIDs is written exactly once at the
	// waiting->countdown transition and never recomputed.
	SelectedQuestionIDs  []string   `json:"selectedQuestionIds"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"` // -1 before selection
	CurrentQuestionID    string     `json:"currentQuestionId"`
	QuestionStartAt      *time.Time `json:"questionStartAt,omitempty"`
}

// Participant is a joined player within a session.
type Participant struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	JoinedAt time.Time `json:"joinedAt"`
	Position int       `json:"position"` // 1-based join order, never reassigned
}

// ParticipantAnswer records one participant's response (or non-response) to one
// question. SelectedAnswer == "" encodes a time-up with no selection.
type ParticipantAnswer struct {
	ParticipantID  string    `json:"participantId"`
	QuestionID     string    `json:"questionId"`
	SelectedAnswer string    `json:"selectedAnswer"`
	CorrectAnswer  string    `json:"correctAnswer"`
	IsCorrect      bool      `json:"isCorrect"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	AnsweredAt     time.Time `json:"answeredAt"`
	Score          int64     `json:"score"`
}

// SessionWithParticipants is the snapshot delivered by session subscriptions:
// the session document plus its participants ordered by position.
type SessionWithParticipants struct {
	GameSession
	Participants []Participant `json:"participants"`
}

// QuestionOptions holds the four labeled choices of a question.
type QuestionOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Question is static reference data from the fixed bank.
type Question struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Prompt  string          `json:"question"`
	Options QuestionOptions `json:"options"`
	Answer  string          `json:"answer"` // option key: A, B, C or D
}

// Option returns the text for an option key, or "" for an unknown key.
func (q Question) Option(key string) string {
	switch key {
	case "A":
		return q.Options.A
	case "B":
		return q.Options.B
	case "C":
		return q.Options.C
	case "D":
		return q.Options.D
	}
	return ""
}

// PodiumEntry is one participant's computed standing, derived fresh from the
// full answer history every time it is displayed.
type PodiumEntry struct {
	Participant    Participant `json:"participant"`
	TotalScore     int64       `json:"totalScore"`
	CorrectAnswers int         `json:"correctAnswers"`
	AnsweredCount  int         `json:"answeredCount"`
	TotalTimeMs    int64       `json:"totalTimeMs"`
	Position       int         `json:"position"` // 1-based rank after sorting
}

// UserScore is the archived final result of one participant in one session.
type UserScore struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	UserDocument   string    `json:"userDocument"`
	RoomID         string    `json:"roomId"`
	SessionID      string    `json:"sessionId"`
	TotalScore     int64     `json:"totalScore"`
	Position       int       `json:"position"`
	TotalTimeMs    int64     `json:"totalTimeMs"`
	CorrectAnswers int       `json:"correctAnswers"`
	CreatedAt      time.Time `json:"createdAt"`
}

// User is the minimal identity the join protocol needs.
type User struct {
	ID       string `json:"id"`
	Document string `json:"document"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}
