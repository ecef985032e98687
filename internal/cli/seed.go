package cli

import (
	"context"
	"fmt"
	"log"

	"mente-maestra/internal/config"
	"mente-maestra/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the sample question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, q := range sampleQuestions() {
		_, err := pool.Exec(ctx, `
			INSERT INTO questions (id, topic, prompt, option_a, option_b, option_c, option_d, answer)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			q.ID, q.Topic, q.Prompt, q.Options.A, q.Options.B, q.Options.C, q.Options.D, q.Answer)
		if err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	log.Printf("seeded %d questions", len(sampleQuestions()))
	return nil
}

// sampleQuestions provides a minimal bank; swap the loader with the
// Postgres-backed one in production.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q1",
			Topic:  "math",
			Prompt: "What is 2 + 2?",
			Options: domain.QuestionOptions{
				A: "3", B: "4", C: "5", D: "22",
			},
			Answer: "B",
		},
		{
			ID:     "q2",
			Topic:  "geography",
			Prompt: "What is the capital of Colombia?",
			Options: domain.QuestionOptions{
				A: "Medellin", B: "Cali", C: "Bogota", D: "Cartagena",
			},
			Answer: "C",
		},
		{
			ID:     "q3",
			Topic:  "science",
			Prompt: "Which planet is known as the red planet?",
			Options: domain.QuestionOptions{
				A: "Venus", B: "Jupiter", C: "Saturn", D: "Mars",
			},
			Answer: "D",
		},
		{
			ID:     "q4",
			Topic:  "history",
			Prompt: "In which year did World War II end?",
			Options: domain.QuestionOptions{
				A: "1945", B: "1939", C: "1918", D: "1950",
			},
			Answer: "A",
		},
		{
			ID:     "q5",
			Topic:  "science",
			Prompt: "What is the chemical symbol for water?",
			Options: domain.QuestionOptions{
				A: "CO2", B: "H2O", C: "O2", D: "NaCl",
			},
			Answer: "B",
		},
		{
			ID:     "q6",
			Topic:  "math",
			Prompt: "What is 9 x 7?",
			Options: domain.QuestionOptions{
				A: "56", B: "72", C: "63", D: "69",
			},
			Answer: "C",
		},
	}
}

// sampleRooms seeds the in-memory rooms collection at startup.
func sampleRooms() []domain.Room {
	return []domain.Room{
		{ID: "room-1", Name: "Sala 1"},
		{ID: "room-2", Name: "Sala 2"},
		{ID: "room-3", Name: "Sala 3"},
	}
}
