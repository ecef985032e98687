package postgres

import (
	"context"
	"fmt"

	"mente-maestra/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads the question bank from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadBank(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, topic, prompt, option_a, option_b, option_c, option_d, answer
		FROM questions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Topic, &q.Prompt, &q.Options.A, &q.Options.B, &q.Options.C, &q.Options.D, &q.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}
