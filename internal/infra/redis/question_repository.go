package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
)

const questionsKey = "quiz:questions"

// QuestionRepository caches the question list in Redis as a JSON document and
// falls back to a loader on cache miss. Redis failures degrade to the loader.
type QuestionRepository struct {
	client *redis.Client
	loader app.QuestionLoader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader app.QuestionLoader, ttl time.Duration, log *zap.Logger) *QuestionRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := r.cached(ctx); ok {
		return qs, nil
	}

	// the shared load must not die with whichever caller started it
	loadCtx := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := r.cached(loadCtx); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestions(loadCtx)
		if err != nil {
			return nil, err
		}
		if len(qs) > 0 && r.ttl > 0 {
			r.store(loadCtx, qs)
		}
		return qs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Question), nil
	}
}

func (r *QuestionRepository) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("question cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (r *QuestionRepository) store(ctx context.Context, qs []domain.Question) {
	raw, err := json.Marshal(qs)
	if err != nil {
		r.log.Warn("question cache encode failed", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, questionsKey, raw, r.ttlWithJitter()).Err(); err != nil {
		r.log.Warn("question cache write failed", zap.Error(err))
	}
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
