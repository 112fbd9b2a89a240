package cli

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"timed-quiz/internal/app"
	"timed-quiz/internal/config"
	"timed-quiz/internal/domain"
	"timed-quiz/internal/infra/memory"
	pgloader "timed-quiz/internal/infra/postgres"
	redisinfra "timed-quiz/internal/infra/redis"
	"timed-quiz/internal/infra/remote"
)

// deps holds the infrastructure shared by the start and play commands.
type deps struct {
	loader   app.QuestionLoader
	sessions app.SessionRepository
	closers  []func() error
}

// buildDeps picks the question source (remote ontology, then Postgres, then
// a YAML file, then built-in samples) and puts a cache in front of it.
func buildDeps(ctx context.Context, cfg config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, redisClient.Close)
	}

	var loader app.QuestionLoader
	switch {
	case cfg.Remote.BaseURL != "":
		loader = remote.NewQuestionLoader(remote.Config{
			BaseURL:    cfg.Remote.BaseURL,
			Ontology:   cfg.Remote.Ontology,
			ObjectType: cfg.Remote.ObjectType,
			Token:      cfg.Remote.Token,
			PageSize:   cfg.Remote.PageSize,
			Timeout:    config.TTLDuration(cfg.Remote.Timeout, 30*time.Second),
			RetryCount: cfg.Remote.RetryCount,
		}, log.Named("remote"))
		log.Info("loading questions from ontology", zap.String("baseURL", cfg.Remote.BaseURL))
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			_ = d.close()
			return nil, errors.Wrap(err, "connect postgres")
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		loader = pgloader.NewQuestionLoader(pool)
		log.Info("loading questions from postgres")
	case cfg.Quiz.QuestionsFile != "":
		loader = memory.NewFileQuestionLoader(cfg.Quiz.QuestionsFile)
		log.Info("loading questions from file", zap.String("path", cfg.Quiz.QuestionsFile))
	default:
		loader = memory.NewStaticQuestionLoader(sampleQuestions())
		log.Info("loading built-in sample questions")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		d.loader = redisinfra.NewQuestionRepository(redisClient, loader, quizTTL, log.Named("cache"))
		d.sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		d.loader = memory.NewQuestionRepository(loader, quizTTL)
		d.sessions = memory.NewSessionStore()
	}
	return d, nil
}

func (d *deps) close() error {
	var result *multierror.Error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// sampleQuestions keeps the service usable without any configured source.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Question:      "What is 2 + 2?",
			OptionA:       "3",
			OptionB:       "4",
			OptionC:       "5",
			OptionD:       "22",
			CorrectAnswer: "B",
		},
		{
			Question:      "Which gas do plants absorb from the atmosphere?",
			OptionA:       "Oxygen",
			OptionB:       "Nitrogen",
			OptionC:       "Carbon dioxide",
			OptionD:       "Helium",
			CorrectAnswer: "C",
		},
	}
}
