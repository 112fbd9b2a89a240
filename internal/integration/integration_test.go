package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
	pgloader "timed-quiz/internal/infra/postgres"
	pgmigrations "timed-quiz/internal/infra/postgres/migrations"
	infraredis "timed-quiz/internal/infra/redis"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	loader := infraredis.NewQuestionRepository(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute, nil)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewQuizService(sessionStore, loader, nil)
	defer service.Shutdown(ctx)

	id, err := service.StartSession(ctx)
	require.NoError(t, err)
	waitPhase(t, service, id, domain.PhaseActive)

	v, err := service.View(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Question 1 of 2", v.Question.Progress)
	assert.Equal(t, "What is 2 + 2?", v.Question.Text, "rows come back in position order")

	require.NoError(t, service.Select(ctx, id, domain.ChoiceB))
	require.NoError(t, service.Advance(ctx, id))
	require.Eventually(t, func() bool {
		v, err := service.View(ctx, id)
		return err == nil && v.Question != nil && v.Question.Number == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, service.Select(ctx, id, domain.ChoiceA))
	require.NoError(t, service.Advance(ctx, id))
	waitPhase(t, service, id, domain.PhaseComplete)

	v, err = service.View(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &app.ResultView{Score: 1, Total: 2, Percent: 50}, v.Result)

	exists, err := redisClient.Exists(ctx, "quiz:questions").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func waitPhase(t *testing.T, service *app.QuizService, id string, phase domain.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := service.View(context.Background(), id)
		return err == nil && v.Phase == phase
	}, 10*time.Second, 10*time.Millisecond)
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	rows := []struct {
		position int
		q        domain.Question
	}{
		{2, domain.Question{Question: "Largest ocean?", OptionA: "Atlantic", OptionB: "Pacific", OptionC: "Indian", OptionD: "Arctic", CorrectAnswer: "b"}},
		{1, domain.Question{Question: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", CorrectAnswer: "B"}},
		{3, domain.Question{Question: "", CorrectAnswer: "A"}},
	}
	for _, row := range rows {
		_, err := db.ExecContext(ctx,
			`INSERT INTO quiz_questions (position, question, option_a, option_b, option_c, option_d, correct_answer) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.position, row.q.Question, row.q.OptionA, row.q.OptionB, row.q.OptionC, row.q.OptionD, row.q.CorrectAnswer)
		require.NoError(t, err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
