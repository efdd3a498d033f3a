package authority

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stemsi/exstem-runner/internal/model"
)

// Wire types for the Exam Authority HTTP API. They travel inside the
// response envelope's data field and are shared by the runner's client and
// the dev authority's handlers.

const unlimitedLiteral = "unlimited"

// RemainingAttempts encodes as a number, or the string "unlimited".
type RemainingAttempts struct {
	Unlimited bool
	Count     int
}

func (r RemainingAttempts) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return json.Marshal(unlimitedLiteral)
	}
	return []byte(strconv.Itoa(r.Count)), nil
}

func (r *RemainingAttempts) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	// A missing cap is read as no cap.
	if bytes.Equal(b, []byte("null")) {
		*r = RemainingAttempts{Unlimited: true}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != unlimitedLiteral {
			return fmt.Errorf("remainingAttempts: unexpected string %q", s)
		}
		*r = RemainingAttempts{Unlimited: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("remainingAttempts: %w", err)
	}
	if n < 0 {
		n = 0
	}
	*r = RemainingAttempts{Count: n}
	return nil
}

// EligibilityPayload answers GET /student/exams/:exam_id/eligibility.
type EligibilityPayload struct {
	Available         bool              `json:"available"`
	RemainingAttempts RemainingAttempts `json:"remainingAttempts"`
	Message           string            `json:"message"`
}

// UnmarshalJSON reads an absent remainingAttempts the same as null.
func (p *EligibilityPayload) UnmarshalJSON(b []byte) error {
	type plain EligibilityPayload
	out := plain{RemainingAttempts: RemainingAttempts{Unlimited: true}}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*p = EligibilityPayload(out)
	return nil
}

func (p EligibilityPayload) ToModel() model.EligibilitySnapshot {
	return model.EligibilitySnapshot{
		Available: p.Available,
		Attempts: model.Attempts{
			Unlimited: p.RemainingAttempts.Unlimited,
			Remaining: p.RemainingAttempts.Count,
		},
		Reason: p.Message,
	}
}

// QuestionPayload carries options positionally: index 0 is option A.
type QuestionPayload struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Options  []string `json:"options"`
}

// DefinitionPayload answers GET /student/exams/:exam_id/definition.
// MaxAttempts is -1 for unlimited.
type DefinitionPayload struct {
	ID                     string            `json:"id"`
	Title                  string            `json:"title"`
	Questions              []QuestionPayload `json:"questions"`
	DurationMinutes        int               `json:"durationMinutes"`
	PassingScore           float64           `json:"passingScore"`
	MaxAttempts            int               `json:"maxAttempts"`
	ShuffleQuestions       bool              `json:"shuffleQuestions"`
	ShowResultsImmediately bool              `json:"showResultsImmediately"`
	Instructions           string            `json:"instructions,omitempty"`
	StartDate              *time.Time        `json:"startDate,omitempty"`
	EndDate                *time.Time        `json:"endDate,omitempty"`
}

// ToModel converts the payload, falling back to examID when the payload
// omits its own id. A question without exactly four options is rejected.
func (p DefinitionPayload) ToModel(examID string) (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{
		ID:                p.ID,
		Title:             p.Title,
		Questions:         make([]model.Question, 0, len(p.Questions)),
		TimeBudgetSeconds: p.DurationMinutes * 60,
		PassingScore:      p.PassingScore,
		StartsAt:          p.StartDate,
		EndsAt:            p.EndDate,
		Instructions:      p.Instructions,
		ShuffleQuestions:  p.ShuffleQuestions,
		Visibility:        model.ResultsDeferred,
	}
	if def.ID == "" {
		def.ID = examID
	}
	if p.MaxAttempts < 0 {
		def.Attempts = model.AttemptPolicy{Unlimited: true}
	} else {
		def.Attempts = model.AttemptPolicy{MaxAttempts: p.MaxAttempts}
	}
	if p.ShowResultsImmediately {
		def.Visibility = model.ResultsImmediate
	}

	for _, qp := range p.Questions {
		if len(qp.Options) != model.OptionCount {
			return nil, fmt.Errorf("question %s: expected %d options, got %d", qp.ID, model.OptionCount, len(qp.Options))
		}
		q := model.Question{ID: qp.ID, Prompt: qp.Prompt, ImageURL: qp.ImageURL}
		for i, text := range qp.Options {
			q.Options[i] = model.Option{Label: model.OptionLabels[i], Text: text}
		}
		def.Questions = append(def.Questions, q)
	}
	return def, nil
}

// DefinitionFromModel is the inverse of ToModel, used by the dev authority.
func DefinitionFromModel(def *model.ExamDefinition) DefinitionPayload {
	p := DefinitionPayload{
		ID:                     def.ID,
		Title:                  def.Title,
		Questions:              make([]QuestionPayload, 0, len(def.Questions)),
		DurationMinutes:        def.TimeBudgetSeconds / 60,
		PassingScore:           def.PassingScore,
		MaxAttempts:            def.Attempts.MaxAttempts,
		ShuffleQuestions:       def.ShuffleQuestions,
		ShowResultsImmediately: def.Visibility == model.ResultsImmediate,
		Instructions:           def.Instructions,
		StartDate:              def.StartsAt,
		EndDate:                def.EndsAt,
	}
	if def.Attempts.Unlimited {
		p.MaxAttempts = -1
	}
	for _, q := range def.Questions {
		qp := QuestionPayload{ID: q.ID, Prompt: q.Prompt, ImageURL: q.ImageURL, Options: make([]string, model.OptionCount)}
		for i, opt := range q.Options {
			qp.Options[i] = opt.Text
		}
		p.Questions = append(p.Questions, qp)
	}
	return p
}

// SubmissionRequest is the body of POST /student/exams/:exam_id/submissions.
type SubmissionRequest struct {
	Answers   map[string]model.OptionLabel `json:"answers" binding:"required"`
	TimeSpent int                          `json:"timeSpent" binding:"min=0"`
}

// QuestionResultPayload compares one submitted option with the key.
type QuestionResultPayload struct {
	QuestionID     string            `json:"questionId"`
	SelectedOption model.OptionLabel `json:"selectedOption,omitempty"`
	CorrectOption  model.OptionLabel `json:"correctOption"`
	IsCorrect      bool              `json:"isCorrect"`
}

// ResultsPayload is omitted by the authority when results are deferred.
type ResultsPayload struct {
	Score           float64                 `json:"score"`
	Percentage      float64                 `json:"percentage"`
	QuestionResults []QuestionResultPayload `json:"questionResults,omitempty"`
}

// SubmissionPayload answers a submission.
type SubmissionPayload struct {
	Passed  bool            `json:"passed"`
	Message string          `json:"message"`
	Results *ResultsPayload `json:"results,omitempty"`
}

func (p SubmissionPayload) ToModel() *model.SubmissionResult {
	res := &model.SubmissionResult{Passed: p.Passed, Message: p.Message}
	if p.Results == nil {
		return res
	}
	res.Score = p.Results.Score
	res.Percentage = p.Results.Percentage
	for _, qr := range p.Results.QuestionResults {
		res.Outcomes = append(res.Outcomes, model.QuestionOutcome{
			QuestionID: qr.QuestionID,
			Submitted:  qr.SelectedOption,
			Correct:    qr.CorrectOption,
			IsCorrect:  qr.IsCorrect,
		})
	}
	return res
}

// LoginRequest is the body of POST /auth/student/login.
type LoginRequest struct {
	NISN     string `json:"nisn" binding:"required,min=4,max=20"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginPayload answers a successful login.
type LoginPayload struct {
	Token string `json:"token"`
}
