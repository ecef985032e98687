package app

import (
	"context"
	"time"

	"mente-maestra/internal/domain"
)

// AnswerService records per-question answers and serves the aggregations the
// TV host uses to cut a question short and to build the podium.
type AnswerService struct {
	answers   AnswerRepository
	questions QuestionRepository
	timeLimit time.Duration
	now       func() time.Time
}

func NewAnswerService(answers AnswerRepository, questions QuestionRepository, timeLimit time.Duration) *AnswerService {
	return &AnswerService{answers: answers, questions: questions, timeLimit: timeLimit, now: time.Now}
}

// Submit validates the selection against the bank, computes correctness and
// score, and upserts the (participant, question) answer record. An empty
// selectedOption encodes a time-up: never correct, zero score. Submitting
// twice for the same pair replaces the earlier record instead of duplicating.
func (s *AnswerService) Submit(ctx context.Context, roomID, sessionID, participantID, questionID, selectedOption string, responseTime time.Duration) (domain.ParticipantAnswer, error) {
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.ParticipantAnswer{}, err
	}

	correct := selectedOption != "" && selectedOption == question.Answer
	answer := domain.ParticipantAnswer{
		ParticipantID:  participantID,
		QuestionID:     questionID,
		SelectedAnswer: selectedOption,
		CorrectAnswer:  question.Answer,
		IsCorrect:      correct,
		ResponseTimeMs: responseTime.Milliseconds(),
		AnsweredAt:     s.now(),
		Score:          ComputeScore(s.timeLimit, responseTime, correct),
	}
	if err := s.answers.UpsertAnswer(ctx, roomID, sessionID, answer); err != nil {
		return domain.ParticipantAnswer{}, err
	}
	return answer, nil
}

// SubmitTimeUp records the null answer written when a player's local timer
// fires before any selection was made.
func (s *AnswerService) SubmitTimeUp(ctx context.Context, roomID, sessionID, participantID, questionID string) (domain.ParticipantAnswer, error) {
	return s.Submit(ctx, roomID, sessionID, participantID, questionID, "", s.timeLimit)
}

// SubscribeQuestionAnswers pushes the full answer set for one question, plus
// its count, whenever a record is written. The TV host watches this to detect
// that every expected participant has answered.
func (s *AnswerService) SubscribeQuestionAnswers(ctx context.Context, roomID, sessionID, questionID string) (<-chan []domain.ParticipantAnswer, func(), error) {
	return s.answers.SubscribeQuestionAnswers(ctx, roomID, sessionID, questionID)
}

func (s *AnswerService) QuestionAnswers(ctx context.Context, roomID, sessionID, questionID string) ([]domain.ParticipantAnswer, error) {
	return s.answers.QuestionAnswers(ctx, roomID, sessionID, questionID)
}

// AllAnswers is the one-shot podium fetch of every answer in the session.
func (s *AnswerService) AllAnswers(ctx context.Context, roomID, sessionID string) ([]domain.ParticipantAnswer, error) {
	return s.answers.AllAnswers(ctx, roomID, sessionID)
}
