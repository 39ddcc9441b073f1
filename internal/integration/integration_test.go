package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/domain"
	"quizdeck-service/internal/infra/memory"
	pginfra "quizdeck-service/internal/infra/postgres"
	pgmigrations "quizdeck-service/internal/infra/postgres/migrations"
	infraredis "quizdeck-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pginfra.NewQuizLoader(pool)
	quizzes := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	state := infraredis.NewStateStore(redisClient, time.Hour)
	attempts := pginfra.NewAttemptStore(pool)
	service := app.NewSessionService(memory.NewSessionStore(), quizzes, attempts, state)

	session, err := service.Enter(ctx, "quiz-1", "u1", "246802")
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if session.State() != app.StateInProgress {
		t.Fatalf("expected in_progress, got %s", session.State())
	}
	if remaining := session.Remaining(); remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("unexpected remaining %s", remaining)
	}

	for position, value := range []string{"4", "Paris"} {
		if _, err := session.Navigate(position); err != nil {
			t.Fatalf("navigate %d: %v", position, err)
		}
		if err := session.Answer(ctx, value); err != nil {
			t.Fatalf("answer %d: %v", position, err)
		}
	}

	if err := session.RequestSubmit(); err != nil {
		t.Fatalf("request submit: %v", err)
	}
	result, err := session.ConfirmSubmit(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !result.Confirmed || result.Attempt == nil {
		t.Fatalf("expected confirmed attempt, got %+v", result)
	}
	if result.Score != 2 || result.Tier != domain.TierExcellent {
		t.Fatalf("expected 2/2 excellent, got %d %s", result.Score, result.Tier)
	}

	// the attempt landed in postgres with the server-side score
	stored, err := attempts.Get(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("get stored attempt: %v", err)
	}
	if stored.ID != result.Attempt.ID || stored.Score != 2 {
		t.Fatalf("stored attempt mismatch: %+v", stored)
	}

	// a competing direct submission hits the unique constraint
	if _, err := attempts.Submit(ctx, "quiz-1", "u1", nil); !errors.Is(err, domain.ErrAttemptExists) {
		t.Fatalf("expected attempt exists, got %v", err)
	}

	// re-entering after teardown lands in review mode, no code needed
	service.Leave("quiz-1", "u1")
	review, err := service.Enter(ctx, "quiz-1", "u1", "")
	if err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	if review.State() != app.StateSubmitted {
		t.Fatalf("expected review mode, got %s", review.State())
	}
}

func TestDeadlineSurvivesSessionTeardown(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pginfra.NewQuizLoader(pool)
	quizzes := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	state := infraredis.NewStateStore(redisClient, time.Hour)
	attempts := pginfra.NewAttemptStore(pool)
	service := app.NewSessionService(memory.NewSessionStore(), quizzes, attempts, state)

	session, err := service.Enter(ctx, "quiz-1", "u1", "246802")
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := session.Answer(ctx, "4"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	firstRemaining := session.Remaining()
	service.Leave("quiz-1", "u1")

	resumed, err := service.Enter(ctx, "quiz-1", "u1", "246802")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if value, ok := resumed.AnswerAt(0); !ok || value != "4" {
		t.Fatalf("mirrored answer lost across teardown: %q %v", value, ok)
	}
	// the deadline is the persisted one, never re-derived
	if resumed.Remaining() > firstRemaining {
		t.Fatalf("countdown restarted: %s > %s", resumed.Remaining(), firstRemaining)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
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

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	code := "246802"
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Warmup",
		TimerSeconds: 300,
		AccessCode:   &code,
		Questions: []domain.Question{
			{ID: "q1", Idx: 1, Kind: domain.KindMCQ, Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Answer: "4"},
			{ID: "q2", Idx: 2, Kind: domain.KindFreeText, Prompt: "Capital of France?", Answer: "Paris"},
		},
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
