package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/authority"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/repository"
)

// Exam authority errors. Handlers map each to a status code.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrExamForbidden     = errors.New("exam not assigned to student")
	ErrExamNotAvailable  = errors.New("exam not available")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	ErrWindowClosed      = errors.New("exam window closed")
	ErrUnknownQuestion   = errors.New("unknown question")
)

// SubmissionGrace is how long after the window closes a submission is still
// accepted, so a clock that ran out at the window end can still land.
const SubmissionGrace = 2 * time.Minute

// Student-facing messages.
const (
	msgAvailable    = "You may start this exam."
	msgNotOpen      = "This exam has not opened yet."
	msgClosed       = "The exam window has closed."
	msgNoAttempts   = "You have used all of your attempts for this exam."
	msgPassed       = "Congratulations, you passed."
	msgFailed       = "You did not reach the passing score."
	msgResultsLater = "Your answers have been submitted. Results will be published later."
)

// SubmissionObserver is notified of every graded submission.
type SubmissionObserver interface {
	ObserveSubmission(examID string, passed bool)
}

// StatusError carries a student-facing message alongside a sentinel error.
type StatusError struct {
	Err     error
	Message string
}

func (e *StatusError) Error() string { return e.Err.Error() + ": " + e.Message }
func (e *StatusError) Unwrap() error { return e.Err }

// ExamAuthorityService answers eligibility, definition and submission
// requests for fixture-backed exams.
type ExamAuthorityService struct {
	examRepo    *repository.ExamRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	observer    SubmissionObserver
	log         zerolog.Logger
	now         func() time.Time
}

// NewExamAuthorityService creates a new ExamAuthorityService. observer may be nil.
func NewExamAuthorityService(
	examRepo *repository.ExamRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	observer SubmissionObserver,
	log zerolog.Logger,
) *ExamAuthorityService {
	return &ExamAuthorityService{
		examRepo:    examRepo,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		observer:    observer,
		log:         log.With().Str("component", "exam_authority").Logger(),
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (s *ExamAuthorityService) SetClock(now func() time.Time) {
	s.now = now
}

// lookup fetches an exam and checks the student's class may sit it.
func (s *ExamAuthorityService) lookup(ctx context.Context, examID string, classID int) (*repository.ExamRecord, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.OpenTo(classID) {
		return nil, ErrExamForbidden
	}
	return exam, nil
}

func (s *ExamAuthorityService) remaining(ctx context.Context, exam *repository.ExamRecord, studentID int) (authority.RemainingAttempts, error) {
	policy := exam.Definition.Attempts
	if policy.Unlimited {
		return authority.RemainingAttempts{Unlimited: true}, nil
	}
	used, err := s.attemptRepo.Used(ctx, exam.Definition.ID, studentID)
	if err != nil {
		return authority.RemainingAttempts{}, err
	}
	return authority.RemainingAttempts{Count: max(policy.MaxAttempts-used, 0)}, nil
}

// Eligibility reports whether the student may start or resume the exam now.
func (s *ExamAuthorityService) Eligibility(ctx context.Context, examID string, studentID, classID int) (*authority.EligibilityPayload, error) {
	exam, err := s.lookup(ctx, examID, classID)
	if err != nil {
		return nil, err
	}
	left, err := s.remaining(ctx, exam, studentID)
	if err != nil {
		return nil, err
	}

	p := &authority.EligibilityPayload{Available: true, RemainingAttempts: left, Message: msgAvailable}
	switch {
	case exam.Definition.WindowState(s.now()) == model.WindowNotOpen:
		p.Available, p.Message = false, msgNotOpen
	case exam.Definition.WindowState(s.now()) == model.WindowClosed:
		p.Available, p.Message = false, msgClosed
	case !left.Unlimited && left.Count == 0:
		p.Available, p.Message = false, msgNoAttempts
	}
	return p, nil
}

// Definition returns the exam without its answer key. It is only served
// while the student is eligible.
func (s *ExamAuthorityService) Definition(ctx context.Context, examID string, studentID, classID int) (*authority.DefinitionPayload, error) {
	eligibility, err := s.Eligibility(ctx, examID, studentID, classID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Available {
		return nil, &StatusError{Err: ErrExamNotAvailable, Message: eligibility.Message}
	}
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	p := authority.DefinitionFromModel(&exam.Definition)
	return &p, nil
}

// Submit grades one attempt and records it. Partial answer maps are
// accepted because a clock-forced submission may be incomplete.
func (s *ExamAuthorityService) Submit(ctx context.Context, examID string, studentID, classID int, req *authority.SubmissionRequest) (*authority.SubmissionPayload, error) {
	exam, err := s.lookup(ctx, examID, classID)
	if err != nil {
		return nil, err
	}
	def := &exam.Definition

	now := s.now()
	if def.WindowState(now) == model.WindowNotOpen {
		return nil, &StatusError{Err: ErrExamNotAvailable, Message: msgNotOpen}
	}
	if def.EndsAt != nil && now.After(def.EndsAt.Add(SubmissionGrace)) {
		return nil, &StatusError{Err: ErrWindowClosed, Message: msgClosed}
	}

	left, err := s.remaining(ctx, exam, studentID)
	if err != nil {
		return nil, err
	}
	if !left.Unlimited && left.Count == 0 {
		return nil, &StatusError{Err: ErrAttemptsExhausted, Message: msgNoAttempts}
	}

	for qID, label := range req.Answers {
		if !exam.HasQuestion(qID) {
			return nil, &StatusError{Err: ErrUnknownQuestion, Message: fmt.Sprintf("Question %q is not part of this exam.", qID)}
		}
		if !label.Valid() {
			return nil, &StatusError{Err: ErrUnknownQuestion, Message: fmt.Sprintf("Option %q is not valid for question %q.", label, qID)}
		}
	}

	results := Grade(exam, req.Answers)
	passed := results.Percentage >= def.PassingScore

	if _, err := s.attemptRepo.Record(ctx, examID, studentID); err != nil {
		return nil, err
	}
	if err := answerstore.NewRedis(s.rdb, strconv.Itoa(studentID)).Clear(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Int("student_id", studentID).Msg("Failed to clear mirrored answers")
	}
	if s.observer != nil {
		s.observer.ObserveSubmission(examID, passed)
	}

	s.log.Info().
		Str("exam_id", examID).
		Int("student_id", studentID).
		Int("answered", len(req.Answers)).
		Int("time_spent", req.TimeSpent).
		Float64("percentage", results.Percentage).
		Bool("passed", passed).
		Msg("Submission graded")

	if def.Visibility != model.ResultsImmediate {
		// Deferred results reveal neither score nor outcome.
		return &authority.SubmissionPayload{Message: msgResultsLater}, nil
	}

	p := &authority.SubmissionPayload{Passed: passed, Message: msgFailed, Results: results}
	if passed {
		p.Message = msgPassed
	}
	return p, nil
}

// Grade scores answers against the key. Score is the number of correct
// answers; percentage is rounded to two decimals.
func Grade(exam *repository.ExamRecord, answers map[string]model.OptionLabel) *authority.ResultsPayload {
	questions := exam.Definition.Questions
	results := &authority.ResultsPayload{QuestionResults: make([]authority.QuestionResultPayload, 0, len(questions))}

	correct := 0
	for _, q := range questions {
		key := exam.AnswerKey[q.ID]
		selected := answers[q.ID]
		ok := selected != "" && selected == key
		if ok {
			correct++
		}
		results.QuestionResults = append(results.QuestionResults, authority.QuestionResultPayload{
			QuestionID:     q.ID,
			SelectedOption: selected,
			CorrectOption:  key,
			IsCorrect:      ok,
		})
	}

	results.Score = float64(correct)
	if len(questions) > 0 {
		results.Percentage = math.Round(float64(correct)/float64(len(questions))*10000) / 100
	}
	return results
}

// MirrorAnswer stores one autosaved answer from the runner's stream. The
// mirror is advisory: submission grading only uses the submitted map.
func (s *ExamAuthorityService) MirrorAnswer(ctx context.Context, examID string, studentID, classID int, questionID string, label model.OptionLabel) error {
	exam, err := s.lookup(ctx, examID, classID)
	if err != nil {
		return err
	}
	if !exam.HasQuestion(questionID) || !label.Valid() {
		return ErrUnknownQuestion
	}
	return answerstore.NewRedis(s.rdb, strconv.Itoa(studentID)).Put(ctx, examID, questionID, label)
}

// MirroredAnswers returns what the stream has recorded so far.
func (s *ExamAuthorityService) MirroredAnswers(ctx context.Context, examID string, studentID int) (model.AnswerMap, error) {
	return answerstore.NewRedis(s.rdb, strconv.Itoa(studentID)).Load(ctx, examID)
}
