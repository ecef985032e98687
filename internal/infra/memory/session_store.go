package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
)

// SessionStore is the in-memory sessions collection, including the participant
// and answer sub-collections owned by each session document.
//
// All mutations run under one store-wide mutex, which gives the one-at-a-time
// serializable transactions the join/leave counter protocol assumes. The room
// set is small and fixed, so a single lock is not a contention concern.
type SessionStore struct {
	mu     sync.Mutex
	byRoom map[string]map[string]*sessionDoc

	sessionWatchers map[string]map[chan app.SessionSnapshot]struct{}
	answerWatchers  map[string]map[chan []domain.ParticipantAnswer]struct{}

	now func() time.Time
}

type sessionDoc struct {
	session      domain.GameSession
	participants map[string]domain.Participant
	// answers are keyed by (participantID, questionID): a rewrite for the same
	// pair replaces the record instead of appending a duplicate.
	answers map[answerKey]domain.ParticipantAnswer
}

type answerKey struct {
	participantID string
	questionID    string
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic timestamps.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		byRoom:          make(map[string]map[string]*sessionDoc),
		sessionWatchers: make(map[string]map[chan app.SessionSnapshot]struct{}),
		answerWatchers:  make(map[string]map[chan []domain.ParticipantAnswer]struct{}),
		now:             now,
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.byRoom[session.RoomID]
	if !ok {
		sessions = make(map[string]*sessionDoc)
		s.byRoom[session.RoomID] = sessions
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	sessions[session.ID] = &sessionDoc{
		session:      copySession(session),
		participants: make(map[string]domain.Participant),
		answers:      make(map[answerKey]domain.ParticipantAnswer),
	}
	s.notifySessionLocked(session.RoomID, session.ID)
	return nil
}

// FindCurrent returns the newest session whose status is not ended. The store
// cannot combine a not-equal filter with ordering, so it scans the enumerated
// non-terminal states (the documented fallback query shape).
func (s *SessionStore) FindCurrent(_ context.Context, roomID string) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found  bool
		newest domain.GameSession
	)
	for _, doc := range s.byRoom[roomID] {
		for _, status := range domain.NonTerminalStatuses() {
			if doc.session.Status != status {
				continue
			}
			if !found || doc.session.CreatedAt.After(newest.CreatedAt) {
				newest = copySession(doc.session)
				found = true
			}
		}
	}
	if !found {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return newest, nil
}

// FindMostRecentEnded returns the newest session already at podium or ended.
func (s *SessionStore) FindMostRecentEnded(_ context.Context, roomID string) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found  bool
		newest domain.GameSession
	)
	for _, doc := range s.byRoom[roomID] {
		if doc.session.Status != domain.StatusPodium && doc.session.Status != domain.StatusEnded {
			continue
		}
		if !found || doc.session.CreatedAt.After(newest.CreatedAt) {
			newest = copySession(doc.session)
			found = true
		}
	}
	if !found {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return newest, nil
}

func (s *SessionStore) Get(_ context.Context, roomID, sessionID string) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return copySession(doc.session), nil
}

// Tx runs fn against a staged view of the session and its participants.
// Nothing is applied unless fn returns nil; on success the staged writes
// commit atomically and subscribers are notified once.
func (s *SessionStore) Tx(_ context.Context, roomID, sessionID string, fn func(tx app.SessionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}

	tx := &sessionTx{
		session:      copySession(doc.session),
		participants: participantsLocked(doc),
	}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.sessionDirty {
		doc.session = copySession(tx.session)
	}
	for _, p := range tx.created {
		doc.participants[p.ID] = p
	}
	for _, id := range tx.deleted {
		delete(doc.participants, id)
	}
	s.notifySessionLocked(roomID, sessionID)
	return nil
}

func (s *SessionStore) Subscribe(_ context.Context, roomID, sessionID string) (<-chan app.SessionSnapshot, func(), error) {
	ch := make(chan app.SessionSnapshot, 8)
	key := roomID + "/" + sessionID

	s.mu.Lock()
	watchers, ok := s.sessionWatchers[key]
	if !ok {
		watchers = make(map[chan app.SessionSnapshot]struct{})
		s.sessionWatchers[key] = watchers
	}
	watchers[ch] = struct{}{}
	initial := s.sessionSnapshotLocked(roomID, sessionID)
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if watchers, ok := s.sessionWatchers[key]; ok {
			if _, ok := watchers[ch]; ok {
				delete(watchers, ch)
				close(ch)
			}
			if len(watchers) == 0 {
				delete(s.sessionWatchers, key)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *SessionStore) UpsertAnswer(_ context.Context, roomID, sessionID string, answer domain.ParticipantAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = s.now()
	}
	doc.answers[answerKey{participantID: answer.ParticipantID, questionID: answer.QuestionID}] = answer
	s.notifyAnswersLocked(roomID, sessionID, answer.QuestionID)
	return nil
}

func (s *SessionStore) QuestionAnswers(_ context.Context, roomID, sessionID, questionID string) ([]domain.ParticipantAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return questionAnswersLocked(doc, questionID), nil
}

func (s *SessionStore) AllAnswers(_ context.Context, roomID, sessionID string) ([]domain.ParticipantAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	answers := make([]domain.ParticipantAnswer, 0, len(doc.answers))
	for _, a := range doc.answers {
		answers = append(answers, a)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].AnsweredAt.Before(answers[j].AnsweredAt) })
	return answers, nil
}

func (s *SessionStore) SubscribeQuestionAnswers(_ context.Context, roomID, sessionID, questionID string) (<-chan []domain.ParticipantAnswer, func(), error) {
	ch := make(chan []domain.ParticipantAnswer, 8)
	key := roomID + "/" + sessionID + "/" + questionID

	s.mu.Lock()
	watchers, ok := s.answerWatchers[key]
	if !ok {
		watchers = make(map[chan []domain.ParticipantAnswer]struct{})
		s.answerWatchers[key] = watchers
	}
	watchers[ch] = struct{}{}
	var initial []domain.ParticipantAnswer
	if doc, ok := s.byRoom[roomID][sessionID]; ok {
		initial = questionAnswersLocked(doc, questionID)
	}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if watchers, ok := s.answerWatchers[key]; ok {
			if _, ok := watchers[ch]; ok {
				delete(watchers, ch)
				close(ch)
			}
			if len(watchers) == 0 {
				delete(s.answerWatchers, key)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// DeleteNonEnded removes every non-ended session with its sub-collections
// across all rooms. Live subscribers observe a nil-session snapshot.
func (s *SessionStore) DeleteNonEnded(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for roomID, sessions := range s.byRoom {
		for sessionID, doc := range sessions {
			if doc.session.Status == domain.StatusEnded {
				continue
			}
			delete(sessions, sessionID)
			deleted++
			s.notifySessionLocked(roomID, sessionID)
		}
	}
	return deleted, nil
}

type sessionTx struct {
	session      domain.GameSession
	participants []domain.Participant
	created      []domain.Participant
	deleted      []string
	sessionDirty bool
}

func (tx *sessionTx) Session() domain.GameSession { return copySession(tx.session) }

func (tx *sessionTx) Participants() []domain.Participant {
	out := make([]domain.Participant, len(tx.participants))
	copy(out, tx.participants)
	return out
}

func (tx *sessionTx) UpdateSession(mutate func(*domain.GameSession)) {
	mutate(&tx.session)
	tx.sessionDirty = true
}

func (tx *sessionTx) CreateParticipant(p domain.Participant) {
	tx.created = append(tx.created, p)
	tx.participants = append(tx.participants, p)
}

func (tx *sessionTx) DeleteParticipant(participantID string) {
	tx.deleted = append(tx.deleted, participantID)
	kept := tx.participants[:0]
	for _, p := range tx.participants {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	tx.participants = kept
}

func (s *SessionStore) sessionSnapshotLocked(roomID, sessionID string) app.SessionSnapshot {
	doc, ok := s.byRoom[roomID][sessionID]
	if !ok {
		return app.SessionSnapshot{}
	}
	return app.SessionSnapshot{Session: &domain.SessionWithParticipants{
		GameSession:  copySession(doc.session),
		Participants: participantsLocked(doc),
	}}
}

func (s *SessionStore) notifySessionLocked(roomID, sessionID string) {
	key := roomID + "/" + sessionID
	if len(s.sessionWatchers[key]) == 0 {
		return
	}
	snap := s.sessionSnapshotLocked(roomID, sessionID)
	for ch := range s.sessionWatchers[key] {
		sendLatest(ch, snap)
	}
}

func (s *SessionStore) notifyAnswersLocked(roomID, sessionID, questionID string) {
	key := roomID + "/" + sessionID + "/" + questionID
	if len(s.answerWatchers[key]) == 0 {
		return
	}
	doc := s.byRoom[roomID][sessionID]
	answers := questionAnswersLocked(doc, questionID)
	for ch := range s.answerWatchers[key] {
		sendLatest(ch, answers)
	}
}

func participantsLocked(doc *sessionDoc) []domain.Participant {
	participants := make([]domain.Participant, 0, len(doc.participants))
	for _, p := range doc.participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].Position < participants[j].Position })
	return participants
}

func questionAnswersLocked(doc *sessionDoc, questionID string) []domain.ParticipantAnswer {
	answers := make([]domain.ParticipantAnswer, 0, len(doc.participants))
	for key, a := range doc.answers {
		if key.questionID == questionID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].AnsweredAt.Before(answers[j].AnsweredAt) })
	return answers
}

func copySession(session domain.GameSession) domain.GameSession {
	out := session
	out.SelectedQuestionIDs = append([]string(nil), session.SelectedQuestionIDs...)
	return out
}
