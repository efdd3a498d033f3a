package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/authority"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/handler"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/repository"
	"github.com/stemsi/exstem-runner/internal/service"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/worker"
	"golang.org/x/crypto/bcrypt"
)

var answerKey = map[string]model.OptionLabel{"q1": model.OptionA, "q2": model.OptionB, "q3": model.OptionC}

func fixture(t *testing.T) *repository.Fixture {
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
		ShuffleQuestions:  true,
		Visibility:        model.ResultsImmediate,
	}
	for i := 1; i <= 3; i++ {
		q := model.Question{ID: fmt.Sprintf("q%d", i), Prompt: fmt.Sprintf("Question %d", i)}
		for j := range q.Options {
			q.Options[j].Text = fmt.Sprintf("choice %d", j+1)
		}
		def.Questions = append(def.Questions, q)
	}
	f := &repository.Fixture{
		Students: []repository.StudentFixture{{ID: 7, NISN: "1234567890", Name: "Sari", ClassID: 1, PasswordHash: string(hash)}},
		Exams:    []repository.ExamFixture{{Definition: def, AnswerKey: answerKey}},
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return f
}

type stack struct {
	srv   *httptest.Server
	exams *service.ExamAuthorityService
}

func newStack(t *testing.T, perMinute int) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{GinMode: gin.TestMode, JWTSecret: "test-secret", JWTExpiry: time.Hour}
	f := fixture(t)
	log := zerolog.Nop()
	metrics := middleware.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	limiter := middleware.NewRateLimiter(ctx, perMinute, time.Minute)

	authService := service.NewAuthService(cfg, rdb, repository.NewStudentRepository(f))
	exams := service.NewExamAuthorityService(repository.NewExamRepository(f), repository.NewAttemptRepository(rdb), rdb, metrics, log)

	r := SetupRouter(authService, &Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		StudentPortal: handler.NewStudentPortalHandler(exams, log),
		WS:            handler.NewWSHandler(exams, log, nil),
		System:        handler.NewSystemHandler(rdb, log),
	}, metrics, limiter, cfg)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, exams: exams}
}

func (s *stack) client(token string) *authority.HTTPClient {
	return authority.NewHTTPClient(s.srv.URL, s.srv.Client(), authority.NewCredential(token), zerolog.Nop())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRunnerSessionAgainstAuthority(t *testing.T) {
	st := newStack(t, 1000)
	ctx := context.Background()

	client := st.client("")
	if _, err := client.Login(ctx, "1234567890", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	mirror := worker.NewAutosaveWorker(st.srv.URL, client.Credential(), zerolog.Nop())
	wctx, stopMirror := context.WithCancel(ctx)
	defer stopMirror()
	go mirror.Start(wctx)

	sess := session.New(session.Options{
		ExamID:         "algebra",
		Authority:      client,
		Store:          answerstore.NewMemory(),
		LowTimeSeconds: 60,
		FlashDuration:  time.Second,
		Seed:           func() int64 { return 3 },
		OnSaved: func(qID string, label model.OptionLabel) {
			mirror.Push(worker.Answer{ExamID: "algebra", QuestionID: qID, Label: label})
		},
		Log: zerolog.Nop(),
	})
	sess.Start(ctx)
	if sess.State() != model.StateActive {
		t.Fatalf("state = %s, notice = %+v", sess.State(), sess.Notice())
	}

	for _, q := range sess.Questions() {
		pos := map[model.OptionLabel]int{model.OptionA: 0, model.OptionB: 1, model.OptionC: 2}[answerKey[q.ID]]
		sess.Handle(ctx, session.Select(pos))
		sess.Handle(ctx, session.Simple(session.CmdNext))
	}

	waitFor(t, func() bool {
		got, err := st.exams.MirroredAnswers(ctx, "algebra", 7)
		return err == nil && len(got) == 3
	})

	if _, ok := sess.Handle(ctx, session.Simple(session.CmdSubmit)); ok {
		t.Fatalf("submit should ask for confirmation first")
	}
	sub, ok := sess.Handle(ctx, session.Simple(session.CmdConfirm))
	if !ok {
		t.Fatalf("confirm did not start submission")
	}
	sess.Submit(ctx, sub)

	res := sess.Result()
	if sess.State() != model.StateComplete || res == nil || !res.Passed || res.Percentage != 100 {
		t.Fatalf("state = %s, result = %+v, notice = %+v", sess.State(), res, sess.Notice())
	}
	if got, _ := st.exams.MirroredAnswers(ctx, "algebra", 7); len(got) != 0 {
		t.Fatalf("mirror not cleared: %v", got)
	}

	snap, err := client.Eligibility(ctx, "algebra")
	if err != nil || !snap.Available || snap.Attempts.Remaining != 1 {
		t.Fatalf("eligibility = %+v, %v", snap, err)
	}
}

func TestExhaustedAttemptsClassifyAsUnavailable(t *testing.T) {
	st := newStack(t, 1000)
	ctx := context.Background()

	client := st.client("")
	if _, err := client.Login(ctx, "1234567890", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := client.Submit(ctx, "algebra", model.Submission{Answers: model.AnswerMap{"q1": model.OptionA}}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	_, err := client.Submit(ctx, "algebra", model.Submission{Answers: model.AnswerMap{}})
	var apiErr *authority.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("err = %v, want 409 APIError", err)
	}
	se := session.Classify(err)
	if se.Kind != session.KindUnavailable || se.Reason != apiErr.Message {
		t.Fatalf("classified = %+v", se)
	}

	_, err = client.Definition(ctx, "algebra")
	if se := session.Classify(err); se.Kind != session.KindUnavailable {
		t.Fatalf("definition classified = %+v", se)
	}
}

func TestAuthorityErrorStatuses(t *testing.T) {
	st := newStack(t, 1000)
	ctx := context.Background()

	if _, err := st.client("").Login(ctx, "1234567890", "wrong"); err == nil {
		t.Fatalf("bad password accepted")
	}

	_, err := st.client("not-a-jwt").Eligibility(ctx, "algebra")
	if se := session.Classify(err); se.Kind != session.KindAuthExpired {
		t.Fatalf("bad token classified = %+v", se)
	}

	client := st.client("")
	if _, err := client.Login(ctx, "1234567890", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err = client.Eligibility(ctx, "missing")
	if se := session.Classify(err); se.Kind != session.KindNotFound {
		t.Fatalf("missing exam classified = %+v", se)
	}

	_, err = client.Submit(ctx, "algebra", model.Submission{Answers: model.AnswerMap{"q9": model.OptionA}})
	var apiErr *authority.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown question err = %v", err)
	}
}

func TestReloginInvalidatesOldToken(t *testing.T) {
	st := newStack(t, 1000)
	ctx := context.Background()

	first := st.client("")
	if _, err := first.Login(ctx, "1234567890", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	second := st.client("")
	if _, err := second.Login(ctx, "1234567890", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := first.Eligibility(ctx, "algebra"); session.Classify(err).Kind != session.KindAuthExpired {
		t.Fatalf("old token err = %v", err)
	}
	if _, err := second.Eligibility(ctx, "algebra"); err != nil {
		t.Fatalf("new token err = %v", err)
	}
}

func TestRateLimitOnAuth(t *testing.T) {
	st := newStack(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(st.srv.URL+"/api/v1/auth/student/login", "application/json", strings.NewReader(`{"nisn":"1234567890","password":"wrong"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	st := newStack(t, 1000)

	resp, err := http.Get(st.srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
		Metadata struct {
			RequestID string `json:"request_id"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body.Data.Status != "ok" || body.Metadata.RequestID == "" {
		t.Fatalf("health = %d %+v", resp.StatusCode, body)
	}

	resp, err = http.Get(st.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), `http_requests_total{endpoint="/health",method="GET",status="200"} 1`) {
		t.Fatalf("metrics missing health counter:\n%s", raw)
	}
}
