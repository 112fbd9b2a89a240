package app

import (
	"fmt"
	"math"

	"timed-quiz/internal/domain"
)

const (
	frozenBanner   = "Time's up! Click Next to continue."
	loadingMessage = "Fetching questions..."
	urgentSeconds  = 10
)

// View is the presentation derived from a State. It is never stored.
type View struct {
	Phase    domain.Phase  `json:"phase"`
	Loading  *LoadingView  `json:"loading,omitempty"`
	Error    *ErrorView    `json:"error,omitempty"`
	Question *QuestionView `json:"question,omitempty"`
	Result   *ResultView   `json:"result,omitempty"`
}

// LoadingView is shown while the loader runs.
type LoadingView struct {
	Message string `json:"message"`
}

// ErrorView carries the load failure and the reload action.
type ErrorView struct {
	Message string `json:"message"`
	Action  string `json:"action"`
}

// OptionView is one labelled answer button.
type OptionView struct {
	Label    domain.Choice `json:"label"`
	Text     string        `json:"text"`
	Selected bool          `json:"selected"`
}

// QuestionView is the active-phase screen.
type QuestionView struct {
	Number       int          `json:"number"`
	Total        int          `json:"total"`
	Progress     string       `json:"progress"`
	Text         string       `json:"text"`
	Options      []OptionView `json:"options"`
	TimeLeft     int          `json:"timeLeft"`
	Urgent       bool         `json:"urgent"`
	Locked       bool         `json:"locked"`
	Banner       string       `json:"banner,omitempty"`
	CanAdvance   bool         `json:"canAdvance"`
	AdvanceLabel string       `json:"advanceLabel"`
}

// ResultView is the completion summary.
type ResultView struct {
	Score   int `json:"score"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// Render derives the view for s.
func Render(s State) View {
	v := View{Phase: s.Phase}
	switch s.Phase {
	case domain.PhaseLoading:
		v.Loading = &LoadingView{Message: loadingMessage}
	case domain.PhaseError:
		v.Error = &ErrorView{Message: s.ErrorMessage, Action: "reload"}
	case domain.PhaseComplete:
		v.Result = &ResultView{
			Score:   s.Score,
			Total:   len(s.Questions),
			Percent: Percent(s.Score, len(s.Questions)),
		}
	case domain.PhaseActive:
		v.Question = renderQuestion(s)
	}
	return v
}

func renderQuestion(s State) *QuestionView {
	q := s.Questions[s.CurrentIndex]
	total := len(s.Questions)
	options := make([]OptionView, 0, len(domain.Choices))
	for _, c := range domain.Choices {
		options = append(options, OptionView{Label: c, Text: q.Option(c), Selected: s.Selected == c})
	}

	label := "Next Question"
	if s.CurrentIndex == total-1 {
		label = "Finish Quiz"
	}

	qv := &QuestionView{
		Number:       s.CurrentIndex + 1,
		Total:        total,
		Progress:     fmt.Sprintf("Question %d of %d", s.CurrentIndex+1, total),
		Text:         q.Question,
		Options:      options,
		TimeLeft:     s.TimeLeft,
		Urgent:       s.TimeLeft <= urgentSeconds,
		Locked:       s.Frozen,
		CanAdvance:   s.Frozen || s.Selected != domain.ChoiceNone,
		AdvanceLabel: label,
	}
	if s.Frozen {
		qv.Banner = frozenBanner
	}
	return qv
}

// Percent returns round(score/total*100), rounding halves away from zero.
func Percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
