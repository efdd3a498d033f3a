package model

import (
	"time"
)

// OptionLabel identifies one of the four answer options of a question.
type OptionLabel string

const (
	OptionA OptionLabel = "A"
	OptionB OptionLabel = "B"
	OptionC OptionLabel = "C"
	OptionD OptionLabel = "D"
)

// OptionCount is the fixed arity of every question.
const OptionCount = 4

// OptionLabels lists labels in positional order (digit key 1 → A, ...).
var OptionLabels = [OptionCount]OptionLabel{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether l is one of A–D.
func (l OptionLabel) Valid() bool {
	for _, known := range OptionLabels {
		if l == known {
			return true
		}
	}
	return false
}

// LabelAt returns the label for a zero-based option position.
func LabelAt(pos int) (OptionLabel, bool) {
	if pos < 0 || pos >= OptionCount {
		return "", false
	}
	return OptionLabels[pos], true
}

// Option is one labeled answer choice.
type Option struct {
	Label OptionLabel `json:"label"`
	Text  string      `json:"text"`
}

// Question is a single exam question as seen by the subject. It never
// carries correctness data.
type Question struct {
	ID       string              `json:"id" validate:"required"`
	Prompt   string              `json:"prompt" validate:"required"`
	ImageURL string              `json:"image_url,omitempty" validate:"omitempty,url"`
	Options  [OptionCount]Option `json:"options"`
}

// AttemptPolicy describes how many attempts a subject gets.
type AttemptPolicy struct {
	Unlimited   bool `json:"unlimited"`
	MaxAttempts int  `json:"max_attempts"`
}

// ResultVisibility controls whether scores are shown right after submission.
type ResultVisibility string

const (
	ResultsImmediate ResultVisibility = "IMMEDIATE"
	ResultsDeferred  ResultVisibility = "DEFERRED"
)

// ExamDefinition is the immutable description of one exam instance.
type ExamDefinition struct {
	ID                string           `json:"id" validate:"required"`
	Title             string           `json:"title" validate:"required,max=255"`
	Questions         []Question       `json:"questions" validate:"required,min=1,dive"`
	TimeBudgetSeconds int              `json:"time_budget_seconds" validate:"min=0"`
	PassingScore      float64          `json:"passing_score" validate:"min=0,max=100"`
	Attempts          AttemptPolicy    `json:"attempts"`
	StartsAt          *time.Time       `json:"starts_at,omitempty"`
	EndsAt            *time.Time       `json:"ends_at,omitempty"`
	Instructions      string           `json:"instructions,omitempty"`
	ShuffleQuestions  bool             `json:"shuffle_questions"`
	Visibility        ResultVisibility `json:"visibility" validate:"oneof=IMMEDIATE DEFERRED"`
}

// QuestionIDs returns the question ids in definition order.
func (d *ExamDefinition) QuestionIDs() []string {
	ids := make([]string, len(d.Questions))
	for i, q := range d.Questions {
		ids[i] = q.ID
	}
	return ids
}

// WindowState reports where now falls relative to the visibility window.
func (d *ExamDefinition) WindowState(now time.Time) WindowPosition {
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return WindowNotOpen
	}
	if d.EndsAt != nil && !now.Before(*d.EndsAt) {
		return WindowClosed
	}
	return WindowOpen
}

// WindowPosition is the result of ExamDefinition.WindowState.
type WindowPosition int

const (
	WindowOpen WindowPosition = iota
	WindowNotOpen
	WindowClosed
)
