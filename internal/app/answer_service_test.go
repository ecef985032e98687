package app_test

import (
	"context"
	"testing"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
)

func newAnswerFixture(t *testing.T) (*app.AnswerService, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	if err := store.Create(context.Background(), domain.GameSession{
		ID:     "s1",
		RoomID: "room-1",
		HostID: "host-1",
		Status: domain.StatusQuestion,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(testBank()), time.Minute)
	return app.NewAnswerService(store, bank, 20*time.Second), store
}

func TestSubmitScoresAndUpserts(t *testing.T) {
	ctx := context.Background()
	answers, _ := newAnswerFixture(t)

	first, err := answers.Submit(ctx, "room-1", "s1", "p1", "q2", "B", 5*time.Second)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !first.IsCorrect || first.Score != 15000 || first.CorrectAnswer != "B" {
		t.Fatalf("expected correct answer worth 15000, got %+v", first)
	}

	// Replacing the same (participant, question) pair must not duplicate.
	second, err := answers.Submit(ctx, "room-1", "s1", "p1", "q2", "A", 8*time.Second)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.IsCorrect || second.Score != 0 {
		t.Fatalf("wrong option must score 0, got %+v", second)
	}

	stored, err := answers.QuestionAnswers(ctx, "room-1", "s1", "q2")
	if err != nil {
		t.Fatalf("question answers: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 record after upsert, got %d", len(stored))
	}
	if stored[0].SelectedAnswer != "A" {
		t.Fatalf("upsert must keep the latest record, got %s", stored[0].SelectedAnswer)
	}
}

func TestSubmitTimeUpIsNullAnswer(t *testing.T) {
	ctx := context.Background()
	answers, _ := newAnswerFixture(t)

	answer, err := answers.SubmitTimeUp(ctx, "room-1", "s1", "p1", "q1")
	if err != nil {
		t.Fatalf("time-up: %v", err)
	}
	if answer.IsCorrect || answer.Score != 0 || answer.SelectedAnswer != "" {
		t.Fatalf("time-up must be the empty, zero-score answer, got %+v", answer)
	}
	if answer.ResponseTimeMs != 20000 {
		t.Fatalf("time-up latency must equal the limit, got %d", answer.ResponseTimeMs)
	}
}

func TestSubscribeQuestionAnswersCounts(t *testing.T) {
	ctx := context.Background()
	answers, _ := newAnswerFixture(t)

	ch, cancel, err := answers.SubscribeQuestionAnswers(ctx, "room-1", "s1", "q1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial empty set

	if _, err := answers.Submit(ctx, "room-1", "s1", "p1", "q1", "A", time.Second); err != nil {
		t.Fatalf("submit p1: %v", err)
	}
	if got := <-ch; len(got) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(got))
	}

	if _, err := answers.Submit(ctx, "room-1", "s1", "p2", "q1", "B", 2*time.Second); err != nil {
		t.Fatalf("submit p2: %v", err)
	}
	if got := <-ch; len(got) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(got))
	}
}
