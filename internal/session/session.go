// Package session drives one timed exam attempt: eligibility, loading,
// answering, submission and the result screen.
package session

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/model"
)

// Notice is a failure or message the subject must acknowledge before
// anything other than the clock moves.
type Notice struct {
	Kind    Kind
	Message string
	Missing int
}

// Options wires a Session. Orders, Now, Seed and OnSaved are optional.
type Options struct {
	ExamID         string
	Authority      Authority
	Store          answerstore.Store
	Orders         answerstore.OrderStore
	LowTimeSeconds int
	FlashDuration  time.Duration
	Now            func() time.Time
	Seed           func() int64
	// OnSaved is called after each selection has been persisted.
	OnSaved func(questionID string, label model.OptionLabel)
	Log     zerolog.Logger
}

// Session is the state machine for one exam. It is not safe for concurrent
// use; Runner serialises every call onto one goroutine.
type Session struct {
	opts   Options
	gate   *Gate
	loader *Loader
	log    zerolog.Logger

	state      model.SessionState
	snapshot   model.EligibilitySnapshot
	exam       *LoadedExam
	nav        *Navigator
	clock      *Countdown
	confirming bool
	notice     *Notice
	result     *model.ResultRecord
}

func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log.With().Str("component", "session").Str("exam_id", opts.ExamID).Logger()
	return &Session{
		opts:   opts,
		gate:   NewGate(opts.Authority, log),
		loader: NewLoader(opts.Authority, opts.Orders, opts.Now, opts.Seed, log),
		log:    log,
		state:  model.StateCheckingEligibility,
	}
}

func (s *Session) State() model.SessionState { return s.state }

func (s *Session) Snapshot() model.EligibilitySnapshot { return s.snapshot }

// Result is nil until the session is Complete.
func (s *Session) Result() *model.ResultRecord { return s.result }

// Notice returns the pending notice, if any.
func (s *Session) Notice() *Notice { return s.notice }

// Answers returns a copy of the current AnswerMap.
func (s *Session) Answers() model.AnswerMap {
	if s.nav == nil {
		return model.AnswerMap{}
	}
	return s.nav.Answers()
}

// Questions returns the questions in presentation order.
func (s *Session) Questions() []model.Question {
	if s.exam == nil {
		return nil
	}
	return s.exam.Questions
}

// ClockRunning reports whether ticks should currently be delivered.
func (s *Session) ClockRunning() bool {
	return s.state == model.StateActive && s.clock != nil && s.clock.Running()
}

// Start runs eligibility, loads the exam and restores any saved answers.
// It ends in ShowingInstructions, Active, Blocked, or CheckingEligibility
// with a notice when the authority could not be reached.
func (s *Session) Start(ctx context.Context) {
	s.state = model.StateCheckingEligibility
	s.exam, s.nav, s.clock, s.result = nil, nil, nil, nil
	s.confirming = false

	snap, err := s.gate.Check(ctx, s.opts.ExamID)
	s.snapshot = snap
	if err != nil {
		s.fail(err)
		return
	}

	exam, err := s.loader.Load(ctx, s.opts.ExamID)
	if err != nil {
		s.fail(err)
		return
	}

	restored, err := s.opts.Store.Load(ctx, s.opts.ExamID)
	if err != nil {
		s.fail(err)
		return
	}

	restored, dropped := restorable(exam.Questions, restored)
	if len(dropped) > 0 {
		s.log.Warn().Strs("question_ids", dropped).Msg("Dropped saved answers that no longer match the exam")
	}

	s.exam = exam
	s.nav = NewNavigator(s.opts.ExamID, exam.Questions, restored, s.opts.Store, s.opts.FlashDuration, s.opts.Now)
	s.clock = NewCountdown(exam.BudgetSeconds, s.opts.LowTimeSeconds)

	s.log.Info().
		Int("questions", len(exam.Questions)).
		Int("budget_seconds", exam.BudgetSeconds).
		Int("restored_answers", s.nav.Answered()).
		Bool("shuffled", exam.Definition.ShuffleQuestions).
		Msg("Exam loaded")

	if exam.Definition.Instructions != "" {
		s.state = model.StateShowingInstructions
		return
	}
	s.activate()
}

// BeginAttempt leaves the instructions screen.
func (s *Session) BeginAttempt() {
	if s.state == model.StateShowingInstructions {
		s.activate()
	}
}

func (s *Session) activate() {
	s.state = model.StateActive
	s.clock.Start()
}

// Retry re-runs the eligibility gate. It is honoured on the result screen
// when a retry is offered, and after a failed start.
func (s *Session) Retry(ctx context.Context) bool {
	switch s.state {
	case model.StateComplete:
		if !s.retryOffered() {
			return false
		}
	case model.StateCheckingEligibility:
	default:
		return false
	}
	s.log.Info().Msg("Retrying exam")
	s.Start(ctx)
	return true
}

func (s *Session) retryOffered() bool {
	if s.result == nil || s.exam == nil {
		return false
	}
	return Present(s.result, s.exam.Definition.Visibility, s.snapshot).RetryOffered
}

// Acknowledge clears the pending notice.
func (s *Session) Acknowledge() {
	s.notice = nil
}

// Handle applies one command. When the command starts a submission the
// payload is returned and the caller must deliver it to the authority and
// report back through CompleteSubmission.
func (s *Session) Handle(ctx context.Context, cmd Command) (*model.Submission, bool) {
	if s.notice != nil {
		if cmd.Kind == CmdAcknowledge {
			s.Acknowledge()
		}
		return nil, false
	}

	switch s.state {
	case model.StateShowingInstructions:
		if cmd.Kind == CmdBegin {
			s.BeginAttempt()
		}
	case model.StateActive:
		return s.handleActive(ctx, cmd)
	case model.StateCheckingEligibility, model.StateComplete:
		if cmd.Kind == CmdRetry {
			s.Retry(ctx)
		}
	}
	return nil, false
}

func (s *Session) handleActive(ctx context.Context, cmd Command) (*model.Submission, bool) {
	if s.confirming {
		switch cmd.Kind {
		case CmdConfirm:
			return s.Confirm(true)
		case CmdDecline:
			s.Confirm(false)
		}
		return nil, false
	}

	switch cmd.Kind {
	case CmdSelect:
		s.selectPosition(ctx, cmd.Option)
	case CmdNext:
		s.nav.Next()
	case CmdPrevious:
		s.nav.Previous()
	case CmdJump:
		s.nav.JumpTo(cmd.Index)
	case CmdSubmit:
		return s.RequestSubmit()
	}
	return nil, false
}

func (s *Session) selectPosition(ctx context.Context, pos int) {
	if err := s.nav.SelectPosition(ctx, pos); err != nil {
		s.log.Error().Err(err).Int("position", pos).Msg("Failed to save answer")
		s.fail(err)
		return
	}
	if s.opts.OnSaved != nil {
		q := s.nav.Current()
		s.opts.OnSaved(q.ID, s.nav.Answers()[q.ID])
	}
}

// Tick advances the clock by one second. When it reaches zero the forced
// submission payload is returned, exactly once.
func (s *Session) Tick() (*model.Submission, bool) {
	if s.state != model.StateActive || s.clock == nil {
		return nil, false
	}
	if !s.clock.Tick() {
		return nil, false
	}
	s.log.Info().Msg("Time is up, submitting")
	return s.beginSubmit(true)
}

// fail records err as a notice and moves to the state its kind demands.
func (s *Session) fail(err error) {
	se := Classify(err)
	s.notice = &Notice{Kind: se.Kind, Message: se.Reason, Missing: se.Missing}

	switch se.Kind {
	case KindIncomplete:
		return
	case KindTransient:
		s.log.Warn().Err(se.Err).Str("state", string(s.state)).Msg("Transient failure")
		if s.state == model.StateSubmitting {
			s.state = model.StateActive
			s.clock.Start()
		}
		return
	}

	s.log.Warn().Err(se.Err).Str("kind", string(se.Kind)).Str("reason", se.Reason).Msg("Session blocked")
	if s.clock != nil {
		s.clock.Stop()
	}
	s.confirming = false
	s.state = model.StateBlocked
}

// restorable keeps saved answers for questions of this exam with a valid
// label and returns the ids of the rest, sorted.
func restorable(questions []model.Question, saved model.AnswerMap) (model.AnswerMap, []string) {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	kept := make(model.AnswerMap, len(saved))
	var dropped []string
	for qID, label := range saved {
		if known[qID] && label.Valid() {
			kept[qID] = label
			continue
		}
		dropped = append(dropped, qID)
	}
	slices.Sort(dropped)
	return kept, dropped
}
