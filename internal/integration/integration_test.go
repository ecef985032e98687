package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
	pginfra "mente-maestra/internal/infra/postgres"
	pgmigrations "mente-maestra/internal/infra/postgres/migrations"
	infraredis "mente-maestra/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestFullGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, integrationBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	settings := domain.GameSettings{
		MaxPlayers:    2,
		Questions:     2,
		Countdown:     10 * time.Millisecond,
		TimeLimit:     300 * time.Millisecond,
		FeedbackDwell: 15 * time.Millisecond,
		PodiumDwell:   15 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	}

	roomStore := memory.NewRoomStore()
	if err := roomStore.CreateRoom(ctx, domain.Room{ID: "room-1", Name: "Sala 1"}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	sessionStore := memory.NewSessionStore()
	questionRepo := infraredis.NewQuestionCache(redisClient, pginfra.NewQuestionLoader(pool), 5*time.Minute)
	archive := pginfra.NewScoreArchive(pool)
	devices := infraredis.NewDeviceStateStore(redisClient, 5*time.Minute)

	rooms := app.NewRoomService(infraredis.NewRoomLiveness(roomStore, redisClient, 5*time.Minute))
	sessions := app.NewSessionService(sessionStore)
	questions := app.NewQuestionService(questionRepo, sessions)
	answers := app.NewAnswerService(sessionStore, questionRepo, settings.TimeLimit)

	tv := app.NewTvDriver("host-1", "room-1", "dev-tv", rooms, sessions, questions, answers, devices, settings)
	playerA := app.NewPlayerDriver(domain.User{ID: "u1", Document: "doc-1", Username: "Ana"},
		"room-1", "dev-a", rooms, sessions, answers, archive, devices, settings)
	playerB := app.NewPlayerDriver(domain.User{ID: "u2", Document: "doc-2", Username: "Leo"},
		"room-1", "dev-b", rooms, sessions, answers, archive, devices, settings)

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	runDriver := func(run func(context.Context) error, events <-chan app.Event, submit func(string)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(runCtx); err != nil {
				t.Errorf("driver run: %v", err)
			}
		}()
		go func() {
			answered := -1
			for ev := range events {
				if submit == nil || ev.Type != app.EventSession || ev.Session == nil {
					continue
				}
				if ev.Session.Status == domain.StatusQuestion && ev.Session.CurrentQuestionIndex != answered {
					answered = ev.Session.CurrentQuestionIndex
					submit("B")
				}
			}
		}()
	}
	runDriver(playerA.Run, playerA.Events(), playerA.SubmitAnswer)
	runDriver(playerB.Run, playerB.Events(), playerB.SubmitAnswer)
	time.Sleep(20 * time.Millisecond)
	runDriver(tv.Run, tv.Events(), nil)
	wg.Wait()

	ended, err := sessions.FindMostRecentEnded(ctx, "room-1")
	if err != nil {
		t.Fatalf("find ended session: %v", err)
	}
	if ended.Status != domain.StatusEnded {
		t.Fatalf("expected ended session, got %s", ended.Status)
	}

	scores, err := archive.AllScores(ctx)
	if err != nil {
		t.Fatalf("all scores: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 archived scores, got %d", len(scores))
	}

	history, err := archive.UserHistory(ctx, "u1")
	if err != nil || len(history) != 1 {
		t.Fatalf("expected 1 history row for u1, got %d (%v)", len(history), err)
	}
	played, err := archive.AlreadyPlayed(ctx, "doc-2")
	if err != nil || !played {
		t.Fatalf("expected doc-2 played, got %v (%v)", played, err)
	}
	board, err := archive.RoomLeaderboard(ctx, "room-1", 10)
	if err != nil || len(board) != 2 {
		t.Fatalf("expected 2 leaderboard rows, got %d (%v)", len(board), err)
	}
	if board[0].TotalScore < board[1].TotalScore {
		t.Fatalf("leaderboard must be score-descending, got %+v", board)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "game", "POSTGRES_PASSWORD": "gamepass", "POSTGRES_DB": "gamedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://game:gamepass@%s:%s/gamedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, bank []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range bank {
		_, err := db.ExecContext(ctx, `
			INSERT INTO questions (id, topic, prompt, option_a, option_b, option_c, option_d, answer)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
			q.ID, q.Topic, q.Prompt, q.Options.A, q.Options.B, q.Options.C, q.Options.D, q.Answer)
		if err != nil {
			t.Fatalf("insert question %s: %v", q.ID, err)
		}
	}
}

func integrationBank() []domain.Question {
	return []domain.Question{
		{ID: "q1", Topic: "math", Prompt: "What is 2 + 2?",
			Options: domain.QuestionOptions{A: "3", B: "4", C: "5", D: "22"}, Answer: "B"},
		{ID: "q2", Topic: "science", Prompt: "Symbol for water?",
			Options: domain.QuestionOptions{A: "CO2", B: "H2O", C: "O2", D: "NaCl"}, Answer: "B"},
		{ID: "q3", Topic: "science", Prompt: "Red planet?",
			Options: domain.QuestionOptions{A: "Venus", B: "Jupiter", C: "Saturn", D: "Mars"}, Answer: "D"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
