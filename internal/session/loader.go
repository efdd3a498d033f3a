package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// SecondsPerQuestion is the budget used when a definition has none.
const SecondsPerQuestion = 120

// LoadedExam is a definition prepared for presentation.
type LoadedExam struct {
	Definition    *model.ExamDefinition
	Questions     []model.Question
	BudgetSeconds int
	Seed          int64
}

// Loader fetches the definition after a positive eligibility check.
type Loader struct {
	authority Authority
	orders    answerstore.OrderStore
	now       func() time.Time
	seed      func() int64
	log       zerolog.Logger
}

func NewLoader(authority Authority, orders answerstore.OrderStore, now func() time.Time, seed func() int64, log zerolog.Logger) *Loader {
	if now == nil {
		now = time.Now
	}
	if seed == nil {
		seed = func() int64 { return time.Now().UnixNano() }
	}
	return &Loader{authority: authority, orders: orders, now: now, seed: seed, log: log}
}

func (l *Loader) Load(ctx context.Context, examID string) (*LoadedExam, error) {
	def, err := l.authority.Definition(ctx, examID)
	if err != nil {
		return nil, Classify(err)
	}
	if fields := validator.Struct(def); fields != nil {
		l.log.Error().Str("exam_id", examID).Interface("fields", fields).Msg("Exam definition failed validation")
		return nil, unavailableError("This exam is misconfigured. Please contact your proctor.")
	}

	now := l.now()
	switch def.WindowState(now) {
	case model.WindowNotOpen:
		return nil, unavailableError(fmt.Sprintf("This exam opens at %s.", def.StartsAt.Local().Format("2006-01-02 15:04")))
	case model.WindowClosed:
		return nil, unavailableError("This exam has closed.")
	}

	loaded := &LoadedExam{
		Definition:    def,
		Questions:     def.Questions,
		BudgetSeconds: budgetFor(def, now),
	}

	if def.ShuffleQuestions {
		if restored := l.restoreOrder(ctx, examID, def.Questions); restored != nil {
			loaded.Questions = restored
		} else {
			loaded.Seed = l.seed()
			loaded.Questions = Shuffle(def.Questions, loaded.Seed)
			l.saveOrder(ctx, examID, loaded.Questions)
		}
	}

	return loaded, nil
}

// budgetFor applies the per-question fallback and caps the clock at the
// end of the visibility window.
func budgetFor(def *model.ExamDefinition, now time.Time) int {
	budget := def.TimeBudgetSeconds
	if budget <= 0 {
		budget = len(def.Questions) * SecondsPerQuestion
	}
	if def.EndsAt != nil {
		left := int(def.EndsAt.Sub(now) / time.Second)
		if left < 1 {
			left = 1
		}
		if left < budget {
			budget = left
		}
	}
	return budget
}

// Shuffle returns a permutation of questions that depends only on seed.
// The input slice is left untouched.
func Shuffle(questions []model.Question, seed int64) []model.Question {
	out := make([]model.Question, len(questions))
	copy(out, questions)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// restoreOrder reapplies a saved order if it covers exactly this exam's
// questions. Anything else means the exam changed and the order is stale.
func (l *Loader) restoreOrder(ctx context.Context, examID string, questions []model.Question) []model.Question {
	if l.orders == nil {
		return nil
	}
	ids, err := l.orders.LoadOrder(ctx, examID)
	if err != nil {
		l.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to load question order")
		return nil
	}
	if len(ids) != len(questions) {
		return nil
	}

	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil
		}
		delete(byID, id)
		out = append(out, q)
	}
	return out
}

func (l *Loader) saveOrder(ctx context.Context, examID string, questions []model.Question) {
	if l.orders == nil {
		return
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	if err := l.orders.SaveOrder(ctx, examID, ids); err != nil {
		l.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to save question order")
	}
}
