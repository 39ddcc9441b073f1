package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/config"
	"quizdeck-service/internal/domain"
	"quizdeck-service/internal/infra/memory"
	pgstore "quizdeck-service/internal/infra/postgres"
	redisstore "quizdeck-service/internal/infra/redis"
	transport "quizdeck-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt-session server",
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
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var stateStore app.StateStore
	if redisClient != nil {
		stateStore = redisstore.NewStateStore(redisClient, sessionTTL)
	} else {
		stateStore = memory.NewStateStore()
	}

	var attempts app.AttemptGateway
	if pool != nil {
		attempts = pgstore.NewAttemptStore(pool)
	} else {
		attempts = memory.NewAttemptStore(loader)
	}

	sessions := app.NewSessionService(memory.NewSessionStore(), quizRepo, attempts, stateStore)
	dashboard := app.NewDashboardService(quizRepo, attempts)
	wsHandler := transport.NewWSHandler(sessions)
	apiHandler := transport.NewAPIHandler(quizRepo, attempts, dashboard)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizdeck service on :%s", finalPort)
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

// sampleQuizzes provides demo quiz data for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	code := "483920"
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:           "quiz-1",
			Title:        "Arithmetic warm-up",
			TimerSeconds: 300,
			AccessCode:   &code,
			Questions: []domain.Question{
				{
					ID:      "q1",
					Idx:     1,
					Kind:    domain.KindMCQ,
					Prompt:  "What is 2 + 2?",
					Options: []string{"3", "4", "5"},
					Answer:  "4",
				},
				{
					ID:     "q2",
					Idx:    2,
					Kind:   domain.KindFreeText,
					Prompt: "Spell the number 10.",
					Answer: "ten",
				},
			},
		},
	}
}
