package model

// SessionState enumerates the states of one exam-taking session.
type SessionState string

const (
	StateCheckingEligibility SessionState = "CHECKING_ELIGIBILITY"
	StateShowingInstructions SessionState = "SHOWING_INSTRUCTIONS"
	StateActive              SessionState = "ACTIVE"
	StateSubmitting          SessionState = "SUBMITTING"
	StateComplete            SessionState = "COMPLETE"
	StateBlocked             SessionState = "BLOCKED"
)

// AnswerMap maps question id to the selected option label.
type AnswerMap map[string]OptionLabel

// Clone returns an independent copy. A nil map clones to an empty one.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold exactly the same entries.
func (m AnswerMap) Equal(other AnswerMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Attempts is a remaining-attempt count that may be unlimited.
type Attempts struct {
	Unlimited bool `json:"unlimited"`
	Remaining int  `json:"remaining"`
}

// Left reports whether at least one more attempt may be started.
func (a Attempts) Left() bool {
	return a.Unlimited || a.Remaining > 0
}

// Consume returns the count after one attempt has been used.
func (a Attempts) Consume() Attempts {
	if a.Unlimited || a.Remaining <= 0 {
		return a
	}
	return Attempts{Remaining: a.Remaining - 1}
}

// EligibilitySnapshot is the Exam Authority's answer to "may this subject
// start or resume the exam now".
type EligibilitySnapshot struct {
	Available bool     `json:"available"`
	Attempts  Attempts `json:"attempts"`
	Reason    string   `json:"reason,omitempty"`
}

// Submission is the payload sent to the Exam Authority for one attempt.
type Submission struct {
	Answers          AnswerMap `json:"answers"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Forced           bool      `json:"-"`
}

// QuestionOutcome compares a submitted option with the correct one.
type QuestionOutcome struct {
	QuestionID string      `json:"question_id"`
	Submitted  OptionLabel `json:"submitted,omitempty"`
	Correct    OptionLabel `json:"correct"`
	IsCorrect  bool        `json:"is_correct"`
}

// SubmissionResult is the authoritative reply to a submission.
type SubmissionResult struct {
	Passed     bool              `json:"passed"`
	Message    string            `json:"message,omitempty"`
	Score      float64           `json:"score"`
	Percentage float64           `json:"percentage"`
	Outcomes   []QuestionOutcome `json:"outcomes,omitempty"`
}

// ResultRecord is the session's final, read-only result.
type ResultRecord struct {
	SubmissionResult
	TimeSpentSeconds int  `json:"time_spent_seconds"`
	Forced           bool `json:"forced"`
}
