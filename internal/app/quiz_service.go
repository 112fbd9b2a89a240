package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"timed-quiz/internal/domain"
)

// SessionRepository abstracts where live sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	IDs() []string
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions SessionRepository
	loader   QuestionLoader
	log      *zap.Logger
	opts     []RunnerOption
}

func NewQuizService(store SessionRepository, loader QuestionLoader, log *zap.Logger, opts ...RunnerOption) *QuizService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		sessions: store,
		loader:   loader,
		log:      log,
		opts:     append([]RunnerOption{WithLogger(log)}, opts...),
	}
}

// Session pairs a running quiz with the means to stop it.
type Session struct {
	runner *Runner
	cancel context.CancelFunc
}

// NewSession wraps a runner for infrastructure layers and tests.
func NewSession(runner *Runner, cancel context.CancelFunc) *Session {
	return &Session{runner: runner, cancel: cancel}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.runner.ID()
}

// Runner exposes the session event loop.
func (s *Session) Runner() *Runner {
	return s.runner
}

func (s *Session) stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.runner.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartSession creates a session and starts loading its questions.
// The session outlives ctx; it ends with Close or Shutdown.
func (s *QuizService) StartSession(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	runner := NewRunner(id, s.loader, s.opts...)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := NewSession(runner, cancel)
	s.sessions.Put(session)

	go runner.Run(runCtx)
	s.log.Debug("session started", zap.String("session", id))
	return id, nil
}

// Select records an answer for the current question.
func (s *QuizService) Select(_ context.Context, sessionID string, choice domain.Choice) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return session.runner.Select(choice)
}

// Advance moves the session to the next question or completes it.
func (s *QuizService) Advance(_ context.Context, sessionID string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return session.runner.Advance()
}

// Restart replays a completed session with the same questions.
func (s *QuizService) Restart(_ context.Context, sessionID string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return session.runner.Restart()
}

// View returns the latest view of a session.
func (s *QuizService) View(_ context.Context, sessionID string) (View, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.runner.View(), nil
}

// Subscribe returns a channel that receives view updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan View, func(), error) {
	session, err := s.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.runner.Subscribe()
	return ch, cancel, nil
}

// Close tears the session down and waits for its loop to exit.
func (s *QuizService) Close(ctx context.Context, sessionID string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	if err := session.stop(ctx); err != nil {
		return err
	}
	s.log.Debug("session closed", zap.String("session", sessionID))
	return nil
}

// Shutdown closes every live session.
func (s *QuizService) Shutdown(ctx context.Context) error {
	for _, id := range s.sessions.IDs() {
		if err := s.Close(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
	}
	return nil
}

func (s *QuizService) get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
