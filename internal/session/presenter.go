package session

import "github.com/stemsi/exstem-runner/internal/model"

const deferredMessage = "Your answers have been submitted. Results will be published by your proctor."

// ResultView is what the result screen renders.
type ResultView struct {
	Immediate    bool
	Passed       bool
	Score        float64
	Percentage   float64
	Message      string
	Outcomes     []model.QuestionOutcome
	TimeSpent    string
	Forced       bool
	RetryOffered bool
}

// Present builds the result screen. Deferred results show a neutral
// acknowledgement only, which also means no retry offer since that would
// reveal the outcome.
func Present(rec *model.ResultRecord, visibility model.ResultVisibility, snapshot model.EligibilitySnapshot) ResultView {
	view := ResultView{
		TimeSpent: FormatClock(rec.TimeSpentSeconds),
		Forced:    rec.Forced,
	}
	if visibility != model.ResultsImmediate {
		view.Message = deferredMessage
		return view
	}

	view.Immediate = true
	view.Passed = rec.Passed
	view.Score = rec.Score
	view.Percentage = rec.Percentage
	view.Message = rec.Message
	view.Outcomes = rec.Outcomes
	view.RetryOffered = !rec.Passed && snapshot.Attempts.Left()
	return view
}
