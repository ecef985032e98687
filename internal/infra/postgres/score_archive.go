package postgres

import (
	"context"
	"fmt"
	"time"

	"mente-maestra/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ScoreArchive persists final results in Postgres for the results screens.
type ScoreArchive struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewScoreArchive(pool *pgxpool.Pool) *ScoreArchive {
	return &ScoreArchive{pool: pool, now: time.Now}
}

func (a *ScoreArchive) SaveScore(ctx context.Context, score domain.UserScore) (string, error) {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = a.now()
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO user_scores
			(id, user_id, user_document, room_id, session_id, total_score, position, total_time_ms, correct_answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, session_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			position = EXCLUDED.position,
			total_time_ms = EXCLUDED.total_time_ms,
			correct_answers = EXCLUDED.correct_answers`,
		score.ID, score.UserID, score.UserDocument, score.RoomID, score.SessionID,
		score.TotalScore, score.Position, score.TotalTimeMs, score.CorrectAnswers, score.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("save score: %w", err)
	}
	return score.ID, nil
}

func (a *ScoreArchive) UserHistory(ctx context.Context, userID string) ([]domain.UserScore, error) {
	return a.queryScores(ctx, `
		SELECT id, user_id, user_document, room_id, session_id, total_score, position, total_time_ms, correct_answers, created_at
		FROM user_scores
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (a *ScoreArchive) RoomLeaderboard(ctx context.Context, roomID string, limit int) ([]domain.UserScore, error) {
	if limit <= 0 {
		limit = 10
	}
	return a.queryScores(ctx, `
		SELECT id, user_id, user_document, room_id, session_id, total_score, position, total_time_ms, correct_answers, created_at
		FROM user_scores
		WHERE room_id = $1
		ORDER BY total_score DESC, total_time_ms ASC
		LIMIT $2`, roomID, limit)
}

func (a *ScoreArchive) AllScores(ctx context.Context) ([]domain.UserScore, error) {
	return a.queryScores(ctx, `
		SELECT id, user_id, user_document, room_id, session_id, total_score, position, total_time_ms, correct_answers, created_at
		FROM user_scores
		ORDER BY created_at DESC`)
}

func (a *ScoreArchive) AlreadyPlayed(ctx context.Context, userDocument string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_scores WHERE user_document = $1)`,
		userDocument).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("already played: %w", err)
	}
	return exists, nil
}

func (a *ScoreArchive) queryScores(ctx context.Context, query string, args ...interface{}) ([]domain.UserScore, error) {
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

func scanScores(rows pgx.Rows) ([]domain.UserScore, error) {
	var scores []domain.UserScore
	for rows.Next() {
		var s domain.UserScore
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserDocument, &s.RoomID, &s.SessionID,
			&s.TotalScore, &s.Position, &s.TotalTimeMs, &s.CorrectAnswers, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return scores, nil
}
