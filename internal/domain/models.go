package domain

import "strings"

// Question is a single trivia item with four labelled options.
type Question struct {
	Question      string `json:"question" yaml:"question"`
	OptionA       string `json:"optionA" yaml:"optionA"`
	OptionB       string `json:"optionB" yaml:"optionB"`
	OptionC       string `json:"optionC" yaml:"optionC"`
	OptionD       string `json:"optionD" yaml:"optionD"`
	CorrectAnswer string `json:"correctAnswer" yaml:"correctAnswer"`
}

// Valid reports whether the question can be presented.
func (q Question) Valid() bool {
	return q.Question != "" && q.CorrectAnswer != ""
}

// Option returns the text for the given label.
func (q Question) Option(c Choice) string {
	switch c {
	case ChoiceA:
		return q.OptionA
	case ChoiceB:
		return q.OptionB
	case ChoiceC:
		return q.OptionC
	case ChoiceD:
		return q.OptionD
	}
	return ""
}

// NormalizeAnswer upper-cases and trims a stored answer label.
func NormalizeAnswer(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidQuestions drops invalid questions and keeps source order.
func ValidQuestions(qs []Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		q.CorrectAnswer = NormalizeAnswer(q.CorrectAnswer)
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}

// Choice is an answer label. The zero value means no answer selected.
type Choice string

const (
	ChoiceNone Choice = ""
	ChoiceA    Choice = "A"
	ChoiceB    Choice = "B"
	ChoiceC    Choice = "C"
	ChoiceD    Choice = "D"
)

// Choices lists the labels in display order.
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

// Valid reports whether c is one of A-D.
func (c Choice) Valid() bool {
	switch c {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

// ParseChoice accepts a single letter, case-insensitive.
func ParseChoice(raw string) (Choice, error) {
	c := Choice(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return ChoiceNone, ErrInvalidChoice
	}
	return c, nil
}

// Phase is the top-level session mode.
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseError    Phase = "error"
	PhaseActive   Phase = "active"
	PhaseComplete Phase = "complete"
)
