package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"timed-quiz/internal/domain"
)

// QuestionLoader fetches the ordered question list for a new session.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

type eventKind int

const (
	eventLoaded eventKind = iota
	eventTick
	eventSelect
	eventAdvance
	eventRestart
)

func (k eventKind) String() string {
	switch k {
	case eventLoaded:
		return "loaded"
	case eventTick:
		return "tick"
	case eventSelect:
		return "select"
	case eventAdvance:
		return "advance"
	case eventRestart:
		return "restart"
	}
	return "unknown"
}

type event struct {
	kind      eventKind
	questions []domain.Question
	err       error
	handle    TimerHandle
	choice    domain.Choice
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the wall clock used for countdown ticks.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithQuestionSeconds overrides the per-question countdown.
func WithQuestionSeconds(n int) RunnerOption {
	return func(r *Runner) { r.seconds = n }
}

// Runner is the event loop of one quiz session. Load completion, ticks and
// user actions are funneled through a single channel, so the Quiz is only
// ever touched by the Run goroutine.
type Runner struct {
	id       string
	loader   QuestionLoader
	clock    Clock
	log      *zap.Logger
	seconds  int
	interval time.Duration

	events chan event
	done   chan struct{}

	// owned by the Run goroutine
	quiz          *Quiz
	pending       Timer
	pendingHandle TimerHandle

	mu          sync.RWMutex
	view        View
	closed      bool
	subscribers map[chan View]struct{}
}

// NewRunner builds a session runner. Call Run to start it.
func NewRunner(id string, loader QuestionLoader, opts ...RunnerOption) *Runner {
	r := &Runner{
		id:          id,
		loader:      loader,
		clock:       realClock{},
		log:         zap.NewNop(),
		seconds:     DefaultQuestionSeconds,
		interval:    time.Second,
		events:      make(chan event, 16),
		done:        make(chan struct{}),
		subscribers: make(map[chan View]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(zap.String("session", id))
	r.quiz = NewQuiz(r.seconds)
	r.view = Render(r.quiz.State())
	return r
}

// ID returns the session identifier.
func (r *Runner) ID() string {
	return r.id
}

// Run loads the questions and processes events until ctx is done.
// Pending ticks are canceled and subscribers closed on return.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)
	defer r.teardown()

	go func() {
		questions, err := r.loader.LoadQuestions(ctx)
		_ = r.post(event{kind: eventLoaded, questions: questions, err: err})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// Select records an answer choice.
func (r *Runner) Select(c domain.Choice) error {
	if !c.Valid() {
		return domain.ErrInvalidChoice
	}
	return r.post(event{kind: eventSelect, choice: c})
}

// Advance moves to the next question or finishes the quiz.
func (r *Runner) Advance() error {
	return r.post(event{kind: eventAdvance})
}

// Restart replays a completed quiz.
func (r *Runner) Restart() error {
	return r.post(event{kind: eventRestart})
}

// View returns the latest published view.
func (r *Runner) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Subscribe returns a channel receiving every published view, starting with
// the current one. The caller must invoke the returned cancel function.
func (r *Runner) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	r.mu.Lock()
	ch <- r.view
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) post(ev event) error {
	select {
	case <-r.done:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return domain.ErrSessionClosed
	}
}

func (r *Runner) handle(ev event) {
	if ev.kind == eventTick && ev.handle == r.pendingHandle {
		// the pending one-shot has fired
		r.pending = nil
		r.pendingHandle = 0
	}

	var applied bool
	switch ev.kind {
	case eventLoaded:
		applied = r.quiz.Start(ev.questions, ev.err)
		switch {
		case ev.err != nil:
			r.log.Error("failed to load questions", zap.Error(ev.err))
		case len(ev.questions) == 0:
			r.log.Warn("failed to load questions", zap.Error(domain.ErrNoQuestions))
		default:
			r.log.Info("questions loaded", zap.Int("count", len(ev.questions)))
		}
	case eventTick:
		applied = r.quiz.Tick(ev.handle)
	case eventSelect:
		applied = r.quiz.Select(ev.choice)
	case eventAdvance:
		applied = r.quiz.Advance()
	case eventRestart:
		applied = r.quiz.Restart()
	}

	r.syncTimer()
	if !applied {
		r.log.Debug("event ignored", zap.Stringer("event", ev.kind))
		return
	}

	state := r.quiz.State()
	if state.Phase == domain.PhaseComplete && ev.kind == eventAdvance {
		r.log.Info("quiz complete", zap.Int("score", state.Score), zap.Int("total", len(state.Questions)))
	}
	r.publish(Render(state))
}

// syncTimer keeps exactly one pending tick for the armed handle.
func (r *Runner) syncTimer() {
	armed := r.quiz.Timer()
	if armed == r.pendingHandle {
		return
	}
	r.stopTimer()
	if armed == 0 {
		return
	}
	r.pendingHandle = armed
	r.pending = r.clock.AfterFunc(r.interval, func() {
		_ = r.post(event{kind: eventTick, handle: armed})
	})
}

func (r *Runner) stopTimer() {
	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = nil
	r.pendingHandle = 0
}

func (r *Runner) teardown() {
	r.stopTimer()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Runner) publish(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
	for ch := range r.subscribers {
		select {
		case ch <- v:
		default:
			// slow subscriber: drop its oldest view so the latest always lands
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
