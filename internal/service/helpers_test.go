package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testFixture has one student (nisn 1234567890, password "secret") in class 1
// and exam "algebra" with three questions keyed A, B, C.
func testFixture(t *testing.T) *repository.Fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	def := model.ExamDefinition{
		ID:                "algebra",
		Title:             "Algebra",
		TimeBudgetSeconds: 600,
		PassingScore:      60,
		Attempts:          model.AttemptPolicy{MaxAttempts: 2},
		Visibility:        model.ResultsImmediate,
	}
	key := map[string]model.OptionLabel{}
	for i, label := range []model.OptionLabel{model.OptionA, model.OptionB, model.OptionC} {
		q := model.Question{ID: fmt.Sprintf("q%d", i+1), Prompt: fmt.Sprintf("Question %d", i+1)}
		for j := range q.Options {
			q.Options[j].Text = fmt.Sprintf("option %d", j+1)
		}
		def.Questions = append(def.Questions, q)
		key[q.ID] = label
	}

	f := &repository.Fixture{
		Students: []repository.StudentFixture{{ID: 7, NISN: "1234567890", Name: "Sari", ClassID: 1, PasswordHash: string(hash)}},
		Exams:    []repository.ExamFixture{{Definition: def, AnswerKey: key, ClassIDs: []int{1}}},
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return f
}

type testDeps struct {
	cfg     *config.Config
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	fixture *repository.Fixture
	auth    *AuthService
	exams   *ExamAuthorityService
	seen    *recordingObserver
}

type recordingObserver struct {
	passed []bool
}

func (o *recordingObserver) ObserveSubmission(_ string, passed bool) {
	o.passed = append(o.passed, passed)
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}
	f := testFixture(t)
	seen := &recordingObserver{}

	auth := NewAuthService(cfg, rdb, repository.NewStudentRepository(f))
	auth.now = func() time.Time { return testNow }

	exams := NewExamAuthorityService(
		repository.NewExamRepository(f),
		repository.NewAttemptRepository(rdb),
		rdb, seen, zerolog.Nop(),
	)
	exams.SetClock(func() time.Time { return testNow })

	return &testDeps{cfg: cfg, mr: mr, rdb: rdb, fixture: f, auth: auth, exams: exams, seen: seen}
}

// rebuild swaps in an exam repository built from the mutated fixture.
func rebuild(d *testDeps) {
	d.exams.examRepo = repository.NewExamRepository(d.fixture)
}
