package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
)

func testBank() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "1+1?", Options: domain.QuestionOptions{A: "2", B: "3", C: "4", D: "5"}, Answer: "A"},
		{ID: "q2", Prompt: "2+2?", Options: domain.QuestionOptions{A: "3", B: "4", C: "5", D: "6"}, Answer: "B"},
		{ID: "q3", Prompt: "3+3?", Options: domain.QuestionOptions{A: "5", B: "7", C: "6", D: "8"}, Answer: "C"},
		{ID: "q4", Prompt: "4+4?", Options: domain.QuestionOptions{A: "6", B: "7", C: "9", D: "8"}, Answer: "D"},
		{ID: "q5", Prompt: "5+5?", Options: domain.QuestionOptions{A: "10", B: "11", C: "12", D: "13"}, Answer: "A"},
		{ID: "q6", Prompt: "6+6?", Options: domain.QuestionOptions{A: "11", B: "12", C: "13", D: "14"}, Answer: "B"},
	}
}

func newQuestionFixture(t *testing.T) (*app.QuestionService, *app.SessionService, domain.GameSession) {
	t.Helper()
	sessions := app.NewSessionService(memory.NewSessionStore())
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(testBank()), time.Minute)
	questions := app.NewQuestionService(bank, sessions)

	session, err := sessions.FindOrCreate(context.Background(), "room-1", "host-1", 2)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return questions, sessions, session
}

func TestSelectForSessionIsOneShot(t *testing.T) {
	ctx := context.Background()
	questions, sessions, session := newQuestionFixture(t)

	updated, err := questions.SelectForSession(ctx, "room-1", session.ID, "host-1", 5)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(updated.SelectedQuestionIDs) != 5 {
		t.Fatalf("expected 5 ids, got %d", len(updated.SelectedQuestionIDs))
	}
	if updated.CurrentQuestionIndex != 0 || updated.CurrentQuestionID != updated.SelectedQuestionIDs[0] {
		t.Fatalf("index must start at the first selected id, got %+v", updated)
	}
	seen := make(map[string]bool)
	for _, id := range updated.SelectedQuestionIDs {
		if seen[id] {
			t.Fatalf("duplicate id %s in selection", id)
		}
		seen[id] = true
	}

	if _, err := questions.SelectForSession(ctx, "room-1", session.ID, "host-1", 5); !errors.Is(err, domain.ErrQuestionsAlreadySelected) {
		t.Fatalf("expected ErrQuestionsAlreadySelected, got %v", err)
	}
	current, _ := sessions.FindCurrent(ctx, "room-1")
	if len(current.SelectedQuestionIDs) != 5 {
		t.Fatalf("second call must not resample, got %d ids", len(current.SelectedQuestionIDs))
	}
	for i, id := range current.SelectedQuestionIDs {
		if id != updated.SelectedQuestionIDs[i] {
			t.Fatalf("sequence changed at %d: %s vs %s", i, id, updated.SelectedQuestionIDs[i])
		}
	}
}

func TestSelectForSessionEmptyBank(t *testing.T) {
	ctx := context.Background()
	sessions := app.NewSessionService(memory.NewSessionStore())
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(nil), time.Minute)
	questions := app.NewQuestionService(bank, sessions)

	session, err := sessions.FindOrCreate(ctx, "room-1", "host-1", 2)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := questions.SelectForSession(ctx, "room-1", session.ID, "host-1", 5); !errors.Is(err, domain.ErrEmptyQuestionBank) {
		t.Fatalf("expected ErrEmptyQuestionBank, got %v", err)
	}
	current, err := sessions.FindCurrent(ctx, "room-1")
	if err != nil {
		t.Fatalf("find current: %v", err)
	}
	if len(current.SelectedQuestionIDs) != 0 || current.Status != domain.StatusWaiting {
		t.Fatalf("failed selection must leave the session untouched, got %+v", current)
	}
}

func TestAdvanceWalksSequenceThenExhausts(t *testing.T) {
	ctx := context.Background()
	questions, sessions, session := newQuestionFixture(t)

	selected, err := questions.SelectForSession(ctx, "room-1", session.ID, "host-1", 2)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	// Walk into a state where feedback->countdown is the legal advance edge.
	for _, next := range []domain.SessionStatus{domain.StatusCountdown, domain.StatusQuestion, domain.StatusFeedback} {
		if _, err := sessions.UpdateAsHost(ctx, "room-1", session.ID, "host-1", func(sess *domain.GameSession) {
			sess.Status = next
		}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	advanced, err := questions.Advance(ctx, "room-1", session.ID, "host-1")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.CurrentQuestionIndex != 1 || advanced.CurrentQuestionID != selected.SelectedQuestionIDs[1] {
		t.Fatalf("expected index 1 on %s, got %+v", selected.SelectedQuestionIDs[1], advanced)
	}
	if advanced.Status != domain.StatusCountdown {
		t.Fatalf("advance must loop back to countdown, got %s", advanced.Status)
	}

	for _, next := range []domain.SessionStatus{domain.StatusQuestion, domain.StatusFeedback} {
		if _, err := sessions.UpdateAsHost(ctx, "room-1", session.ID, "host-1", func(sess *domain.GameSession) {
			sess.Status = next
		}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	if _, err := questions.Advance(ctx, "room-1", session.ID, "host-1"); !errors.Is(err, domain.ErrQuestionsExhausted) {
		t.Fatalf("expected ErrQuestionsExhausted, got %v", err)
	}
}

func TestGetQuestionUnknownID(t *testing.T) {
	questions, _, _ := newQuestionFixture(t)
	if _, err := questions.GetQuestion(context.Background(), "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}
