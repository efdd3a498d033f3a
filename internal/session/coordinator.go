package session

import (
	"context"

	"github.com/stemsi/exstem-runner/internal/model"
)

// RequestSubmit validates completeness and opens the confirmation step.
// Once the clock has run out the checks are skipped.
func (s *Session) RequestSubmit() (*model.Submission, bool) {
	if s.state != model.StateActive {
		return nil, false
	}
	if s.clock.Expired() {
		return s.beginSubmit(true)
	}
	if missing := s.nav.Unanswered(); missing > 0 {
		s.fail(incompleteError(missing))
		return nil, false
	}
	s.confirming = true
	return nil, false
}

// Confirming reports whether the confirmation prompt is open.
func (s *Session) Confirming() bool { return s.confirming }

// Confirm answers the confirmation prompt. Declining has no side effects.
func (s *Session) Confirm(accept bool) (*model.Submission, bool) {
	if !s.confirming {
		return nil, false
	}
	s.confirming = false
	if !accept {
		return nil, false
	}
	return s.beginSubmit(false)
}

// beginSubmit moves to Submitting and snapshots the payload. A second call
// while Submitting or Complete is a no-op, which is what keeps a manual
// submit and clock expiry from both reaching the authority.
func (s *Session) beginSubmit(forced bool) (*model.Submission, bool) {
	if s.state == model.StateSubmitting || s.state == model.StateComplete {
		return nil, false
	}
	if s.state != model.StateActive {
		return nil, false
	}

	s.clock.Stop()
	s.confirming = false
	s.state = model.StateSubmitting

	sub := &model.Submission{
		Answers:          s.nav.Answers(),
		TimeSpentSeconds: s.clock.Elapsed(),
		Forced:           forced,
	}
	s.log.Info().
		Int("answers", len(sub.Answers)).
		Int("time_spent", sub.TimeSpentSeconds).
		Bool("forced", forced).
		Msg("Submitting exam")
	return sub, true
}

// CompleteSubmission applies the authority's reply to sub.
func (s *Session) CompleteSubmission(ctx context.Context, sub *model.Submission, res *model.SubmissionResult, err error) {
	if s.state != model.StateSubmitting {
		return
	}
	if err != nil {
		s.fail(err)
		return
	}

	s.result = &model.ResultRecord{
		SubmissionResult: *res,
		TimeSpentSeconds: sub.TimeSpentSeconds,
		Forced:           sub.Forced,
	}
	// The authority has counted this attempt; mirror that locally so the
	// retry offer reflects it without another round trip.
	s.snapshot.Attempts = s.snapshot.Attempts.Consume()
	s.state = model.StateComplete

	if err := s.opts.Store.Clear(ctx, s.opts.ExamID); err != nil {
		s.log.Error().Err(err).Msg("Failed to clear saved answers")
	}

	s.log.Info().
		Bool("passed", res.Passed).
		Float64("percentage", res.Percentage).
		Msg("Exam submitted")
}

// Submit delivers sub synchronously. Runner uses the asynchronous path;
// this is for callers that own their own goroutine.
func (s *Session) Submit(ctx context.Context, sub *model.Submission) {
	res, err := s.opts.Authority.Submit(ctx, s.opts.ExamID, *sub)
	s.CompleteSubmission(ctx, sub, res, err)
}
