package app

import (
	"context"
	"math/rand"
	"time"

	"mente-maestra/internal/domain"
)

// QuestionService handles the one-shot random selection of a session's
// question sequence and index advancement through it. The bank itself is
// static reference data served by a QuestionRepository.
type QuestionService struct {
	questions QuestionRepository
	sessions  *SessionService
	rnd       *rand.Rand
	now       func() time.Time
}

func NewQuestionService(questions QuestionRepository, sessions *SessionService) *QuestionService {
	return &QuestionService{
		questions: questions,
		sessions:  sessions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// SelectRandomQuestionIDs samples count ids uniformly without replacement.
// When count covers the whole bank the full bank is returned, shuffled.
func (s *QuestionService) SelectRandomQuestionIDs(bank []domain.Question, count int) []string {
	perm := s.rnd.Perm(len(bank))
	if count > len(bank) {
		count = len(bank)
	}
	ids := make([]string, 0, count)
	for _, idx := range perm[:count] {
		ids = append(ids, bank[idx].ID)
	}
	return ids
}

// SelectForSession draws the session's question sequence and persists it along
// with the initial index. The write happens exactly once, at the
// waiting->countdown transition; re-invocation fails rather than resampling.
func (s *QuestionService) SelectForSession(ctx context.Context, roomID, sessionID, hostID string, count int) (domain.GameSession, error) {
	bank, err := s.questions.Bank(ctx)
	if err != nil {
		return domain.GameSession{}, err
	}
	ids := s.SelectRandomQuestionIDs(bank, count)
	if len(ids) == 0 {
		return domain.GameSession{}, domain.ErrEmptyQuestionBank
	}

	var alreadySelected bool
	updated, err := s.sessions.UpdateAsHost(ctx, roomID, sessionID, hostID, func(sess *domain.GameSession) {
		if len(sess.SelectedQuestionIDs) > 0 {
			alreadySelected = true
			return
		}
		startAt := s.now()
		sess.SelectedQuestionIDs = ids
		sess.CurrentQuestionIndex = 0
		sess.CurrentQuestionID = ids[0]
		sess.QuestionStartAt = &startAt
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	if alreadySelected {
		return domain.GameSession{}, domain.ErrQuestionsAlreadySelected
	}
	return updated, nil
}

// Advance moves the session to the next question in the persisted sequence.
// Running past the end returns ErrQuestionsExhausted, which is the signal that
// feedback should flow to podium instead of back to countdown.
func (s *QuestionService) Advance(ctx context.Context, roomID, sessionID, hostID string) (domain.GameSession, error) {
	session, err := s.sessions.sessions.Get(ctx, roomID, sessionID)
	if err != nil {
		return domain.GameSession{}, err
	}
	next := session.CurrentQuestionIndex + 1
	if next >= len(session.SelectedQuestionIDs) {
		return domain.GameSession{}, domain.ErrQuestionsExhausted
	}
	return s.sessions.UpdateAsHost(ctx, roomID, sessionID, hostID, func(sess *domain.GameSession) {
		startAt := s.now()
		sess.CurrentQuestionIndex = next
		sess.CurrentQuestionID = sess.SelectedQuestionIDs[next]
		sess.QuestionStartAt = &startAt
		sess.Status = domain.StatusCountdown
	})
}

// GetQuestion is a pure bank lookup; no store round-trip once the bank is cached.
func (s *QuestionService) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return s.questions.GetQuestion(ctx, questionID)
}

// SelectedQuestions resolves a persisted id sequence to full questions,
// skipping ids that fell out of the bank.
func (s *QuestionService) SelectedQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, err := s.questions.GetQuestion(ctx, id)
		if err != nil {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}
