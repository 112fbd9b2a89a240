package app

import (
	"timed-quiz/internal/domain"
)

// DefaultQuestionSeconds is the countdown applied to every question.
const DefaultQuestionSeconds = 60

// TimerHandle identifies one armed countdown. The zero handle is never armed.
type TimerHandle uint64

// State is a read-only snapshot of a quiz session.
type State struct {
	Phase        domain.Phase
	ErrorMessage string
	Questions    []domain.Question
	CurrentIndex int
	TimeLeft     int
	TimerRunning bool
	Frozen       bool
	Selected     domain.Choice
	Score        int
}

// Quiz is the session state machine. It is driven by a single goroutine and
// holds no locks; every transition reports whether it changed anything.
type Quiz struct {
	seconds int
	state   State
	timer   TimerHandle // currently armed handle, zero when disarmed
	nextGen TimerHandle
}

// NewQuiz returns a quiz in the loading phase. The countdown is capped at
// DefaultQuestionSeconds; non-positive values select the default.
func NewQuiz(questionSeconds int) *Quiz {
	if questionSeconds <= 0 || questionSeconds > DefaultQuestionSeconds {
		questionSeconds = DefaultQuestionSeconds
	}
	return &Quiz{
		seconds: questionSeconds,
		state:   State{Phase: domain.PhaseLoading},
	}
}

// State returns a copy of the current state. Questions share the backing
// array, which is never mutated after Start.
func (q *Quiz) State() State {
	return q.state
}

// Timer returns the armed countdown handle, or zero if none is armed.
func (q *Quiz) Timer() TimerHandle {
	return q.timer
}

// Start applies the loader outcome.
func (q *Quiz) Start(questions []domain.Question, err error) bool {
	if q.state.Phase != domain.PhaseLoading {
		return false
	}
	switch {
	case err != nil:
		q.fail(err.Error())
	case len(questions) == 0:
		q.fail(domain.ErrNoQuestions.Error())
	default:
		q.state.Questions = questions
		q.state.Score = 0
		q.resetQuestion(0)
		q.state.Phase = domain.PhaseActive
	}
	return true
}

// Tick applies one elapsed second for the countdown identified by h.
func (q *Quiz) Tick(h TimerHandle) bool {
	if h == 0 || h != q.timer || q.state.Phase != domain.PhaseActive || !q.state.TimerRunning || q.state.Frozen {
		return false
	}
	if q.state.TimeLeft <= 1 {
		q.state.TimeLeft = 0
		q.state.Frozen = true
		q.state.TimerRunning = false
		q.timer = 0
		return true
	}
	q.state.TimeLeft--
	return true
}

// Select records an answer while input is unlocked. The last selection wins.
func (q *Quiz) Select(c domain.Choice) bool {
	if q.state.Phase != domain.PhaseActive || q.state.Frozen || !c.Valid() {
		return false
	}
	q.state.Selected = c
	return true
}

// CanAdvance reports whether Advance would be applied.
func (q *Quiz) CanAdvance() bool {
	return q.state.Phase == domain.PhaseActive && (q.state.Frozen || q.state.Selected != domain.ChoiceNone)
}

// Advance scores the current question and moves on, or completes the quiz
// after the last one.
func (q *Quiz) Advance() bool {
	if !q.CanAdvance() {
		return false
	}
	current := q.state.Questions[q.state.CurrentIndex]
	if q.state.Selected != domain.ChoiceNone && string(q.state.Selected) == current.CorrectAnswer {
		q.state.Score++
	}
	if q.state.CurrentIndex == len(q.state.Questions)-1 {
		q.state.Phase = domain.PhaseComplete
		q.state.TimerRunning = false
		q.timer = 0
		return true
	}
	q.resetQuestion(q.state.CurrentIndex + 1)
	return true
}

// Restart replays the same questions from the beginning.
func (q *Quiz) Restart() bool {
	if q.state.Phase != domain.PhaseComplete {
		return false
	}
	q.state.Score = 0
	q.resetQuestion(0)
	q.state.Phase = domain.PhaseActive
	return true
}

func (q *Quiz) resetQuestion(index int) {
	q.state.CurrentIndex = index
	q.state.TimeLeft = q.seconds
	q.state.Frozen = false
	q.state.Selected = domain.ChoiceNone
	q.state.TimerRunning = true
	q.nextGen++
	q.timer = q.nextGen
}

func (q *Quiz) fail(msg string) {
	q.state.Phase = domain.PhaseError
	q.state.ErrorMessage = msg
	q.state.TimerRunning = false
	q.timer = 0
}
