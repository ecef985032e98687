package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mente-maestra/internal/app"
	"mente-maestra/internal/config"
	"mente-maestra/internal/infra/memory"
	pginfra "mente-maestra/internal/infra/postgres"
	redisinfra "mente-maestra/internal/infra/redis"
	transport "mente-maestra/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleQuestions())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	// The redis layers share the admin network toggle; a pause skips their
	// best-effort writes while the in-memory store keeps the game running.
	var togglers []app.NetworkToggler

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		cache := redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
		questionRepo = cache
		togglers = append(togglers, cache)
	} else {
		questionRepo = memory.NewQuestionBank(loader, questionTTL)
	}

	roomStore := memory.NewRoomStore()
	for _, room := range sampleRooms() {
		if err := roomStore.CreateRoom(ctx, room); err != nil {
			return err
		}
	}
	var roomRepo app.RoomRepository = roomStore
	var liveness app.RoomLivenessLister
	if redisClient != nil {
		markers := redisinfra.NewRoomLiveness(roomStore, redisClient, redisTTL)
		roomRepo = markers
		liveness = markers
		togglers = append(togglers, markers)
	}

	var devices app.DeviceStateStore
	if redisClient != nil {
		deviceStore := redisinfra.NewDeviceStateStore(redisClient, redisTTL)
		devices = deviceStore
		togglers = append(togglers, deviceStore)
	} else {
		devices = memory.NewDeviceStateStore()
	}

	var archive app.ScoreArchive
	if pool != nil {
		archive = pginfra.NewScoreArchive(pool)
	}

	settings := cfg.GameSettings()
	sessionStore := memory.NewSessionStore()
	rooms := app.NewRoomService(roomRepo)
	sessions := app.NewSessionService(sessionStore)
	questions := app.NewQuestionService(questionRepo, sessions)
	answers := app.NewAnswerService(sessionStore, questionRepo, settings.TimeLimit)

	wsHandler := transport.NewWSHandler(rooms, sessions, questions, answers, archive, devices, settings)
	adminHandler := transport.NewAdminHandler(rooms, sessions, archive, liveness, togglers)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	adminHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting game service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
