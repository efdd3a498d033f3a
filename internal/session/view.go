package session

import "github.com/stemsi/exstem-runner/internal/model"

// View is a read-only snapshot of everything a front-end needs to draw.
type View struct {
	State        model.SessionState
	ExamID       string
	Title        string
	Instructions string

	Question *model.Question
	Index    int
	Total    int
	Selected model.OptionLabel
	Answered int

	Clock      string
	Urgent     bool
	Flash      string
	Confirming bool

	Notice   *Notice
	Snapshot model.EligibilitySnapshot
	Result   *ResultView
}

// View renders the current state. It has no side effects.
func (s *Session) View() View {
	v := View{
		State:      s.state,
		ExamID:     s.opts.ExamID,
		Confirming: s.confirming,
		Snapshot:   s.snapshot,
	}
	if s.notice != nil {
		n := *s.notice
		v.Notice = &n
	}
	if s.exam != nil {
		v.Title = s.exam.Definition.Title
		v.Instructions = s.exam.Definition.Instructions
	}
	if s.clock != nil {
		v.Clock = s.clock.Display()
		v.Urgent = s.clock.Urgent()
	}
	if s.nav != nil && s.nav.Total() > 0 {
		q := s.nav.Current()
		v.Question = &q
		v.Index = s.nav.Cursor()
		v.Total = s.nav.Total()
		v.Selected = s.nav.Selected()
		v.Answered = s.nav.Answered()
		if msg, ok := s.nav.ActiveFlash(); ok {
			v.Flash = msg
		}
	}
	if s.state == model.StateComplete && s.result != nil && s.exam != nil {
		rv := Present(s.result, s.exam.Definition.Visibility, s.snapshot)
		v.Result = &rv
	}
	return v
}
