package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeAuthority struct {
	mu sync.Mutex

	snapshot  model.EligibilitySnapshot
	eligErr   error
	def       *model.ExamDefinition
	defErr    error
	result    *model.SubmissionResult
	submitErr error

	calls       []string
	submissions []model.Submission
}

func newFakeAuthority(def *model.ExamDefinition) *fakeAuthority {
	return &fakeAuthority{
		snapshot: model.EligibilitySnapshot{Available: true, Attempts: model.Attempts{Remaining: 3}},
		def:      def,
		result:   &model.SubmissionResult{Passed: true, Score: 100, Percentage: 100},
	}
}

func (f *fakeAuthority) Eligibility(_ context.Context, _ string) (model.EligibilitySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "eligibility")
	return f.snapshot, f.eligErr
}

func (f *fakeAuthority) Definition(_ context.Context, _ string) (*model.ExamDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "definition")
	if f.defErr != nil {
		return nil, f.defErr
	}
	clone := *f.def
	return &clone, nil
}

func (f *fakeAuthority) Submit(_ context.Context, _ string, sub model.Submission) (*model.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "submit")
	f.submissions = append(f.submissions, sub)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	res := *f.result
	return &res, nil
}

func (f *fakeAuthority) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAuthority) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func makeDefinition(questions, budgetSeconds int) *model.ExamDefinition {
	def := &model.ExamDefinition{
		ID:                "exam-1",
		Title:             "Physics",
		TimeBudgetSeconds: budgetSeconds,
		PassingScore:      70,
		Attempts:          model.AttemptPolicy{MaxAttempts: 3},
		Visibility:        model.ResultsImmediate,
	}
	for i := 1; i <= questions; i++ {
		q := model.Question{ID: fmt.Sprintf("q%d", i), Prompt: fmt.Sprintf("Question %d", i)}
		for pos, label := range model.OptionLabels {
			q.Options[pos] = model.Option{Label: label, Text: fmt.Sprintf("option %s", label)}
		}
		def.Questions = append(def.Questions, q)
	}
	return def
}

func newTestSession(auth Authority, store *answerstore.MemoryStore) *Session {
	return New(Options{
		ExamID:         "exam-1",
		Authority:      auth,
		Store:          store,
		Orders:         store,
		LowTimeSeconds: 3,
		FlashDuration:  time.Second,
		Now:            func() time.Time { return fixedNow },
		Seed:           func() int64 { return 7 },
		Log:            zerolog.Nop(),
	})
}

// answerAll selects option A on every question, walking forward.
func answerAll(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	for i := range s.Questions() {
		s.Handle(ctx, Jump(i))
		s.Handle(ctx, Select(0))
	}
	if n := s.notice; n != nil {
		t.Fatalf("unexpected notice while answering: %+v", n)
	}
}

type failingStore struct {
	*answerstore.MemoryStore
	failSave bool
}

func (f *failingStore) Save(ctx context.Context, examID string, answers model.AnswerMap) error {
	if f.failSave {
		return fmt.Errorf("disk full")
	}
	return f.MemoryStore.Save(ctx, examID, answers)
}
