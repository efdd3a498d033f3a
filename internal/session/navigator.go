package session

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/model"
)

// Flash is the short-lived confirmation shown after a selection.
type Flash struct {
	Message string
	Until   time.Time
}

// Navigator owns the cursor and the AnswerMap. Every selection is saved
// before it becomes visible, so what is on screen is always on disk.
type Navigator struct {
	examID    string
	questions []model.Question
	cursor    int
	answers   model.AnswerMap
	store     answerstore.Store
	flash     Flash
	flashFor  time.Duration
	now       func() time.Time
}

func NewNavigator(examID string, questions []model.Question, restored model.AnswerMap, store answerstore.Store, flashFor time.Duration, now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	return &Navigator{
		examID:    examID,
		questions: questions,
		answers:   restored.Clone(),
		store:     store,
		flashFor:  flashFor,
		now:       now,
	}
}

func (n *Navigator) Cursor() int { return n.cursor }

func (n *Navigator) Total() int { return len(n.questions) }

func (n *Navigator) Current() model.Question { return n.questions[n.cursor] }

// Selected returns the saved answer for the current question, if any.
func (n *Navigator) Selected() model.OptionLabel { return n.answers[n.Current().ID] }

// Answers returns a copy of the AnswerMap.
func (n *Navigator) Answers() model.AnswerMap { return n.answers.Clone() }

// Answered counts questions of this exam that have an answer.
func (n *Navigator) Answered() int {
	count := 0
	for _, q := range n.questions {
		if _, ok := n.answers[q.ID]; ok {
			count++
		}
	}
	return count
}

func (n *Navigator) Unanswered() int { return len(n.questions) - n.Answered() }

// Select writes label for the current question, last write wins.
func (n *Navigator) Select(ctx context.Context, label model.OptionLabel) error {
	if !label.Valid() {
		return fmt.Errorf("invalid option label %q", label)
	}
	q := n.Current()

	next := n.answers.Clone()
	next[q.ID] = label
	if err := n.store.Save(ctx, n.examID, next); err != nil {
		return err
	}
	n.answers = next
	n.flash = Flash{
		Message: fmt.Sprintf("Saved %s for question %d", label, n.cursor+1),
		Until:   n.now().Add(n.flashFor),
	}
	return nil
}

// SelectPosition maps a zero-based option position (digit key minus one)
// onto its label.
func (n *Navigator) SelectPosition(ctx context.Context, pos int) error {
	label, ok := model.LabelAt(pos)
	if !ok {
		return fmt.Errorf("option position %d out of range", pos)
	}
	return n.Select(ctx, label)
}

func (n *Navigator) Next() { n.JumpTo(n.cursor + 1) }

func (n *Navigator) Previous() { n.JumpTo(n.cursor - 1) }

// JumpTo moves to index, clamped to the question range.
func (n *Navigator) JumpTo(index int) {
	if index < 0 {
		index = 0
	}
	if last := len(n.questions) - 1; index > last {
		index = last
	}
	n.cursor = index
}

// ActiveFlash returns the confirmation message while it has not expired.
func (n *Navigator) ActiveFlash() (string, bool) {
	if n.flash.Message == "" || !n.now().Before(n.flash.Until) {
		return "", false
	}
	return n.flash.Message, true
}
