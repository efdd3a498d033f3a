package repository

import (
	"context"
	"slices"

	"github.com/stemsi/exstem-runner/internal/model"
)

// ExamRecord is an exam as the authority sees it, answer key included.
type ExamRecord struct {
	Definition model.ExamDefinition
	AnswerKey  map[string]model.OptionLabel
	ClassIDs   []int
}

// OpenTo reports whether students of classID may sit the exam.
func (e *ExamRecord) OpenTo(classID int) bool {
	return len(e.ClassIDs) == 0 || slices.Contains(e.ClassIDs, classID)
}

// HasQuestion reports whether qID belongs to the exam.
func (e *ExamRecord) HasQuestion(qID string) bool {
	_, ok := e.AnswerKey[qID]
	return ok
}

// ExamRepository serves exams loaded from a fixture. It is read-only after
// construction.
type ExamRepository struct {
	exams map[string]*ExamRecord
}

func NewExamRepository(f *Fixture) *ExamRepository {
	r := &ExamRepository{exams: make(map[string]*ExamRecord, len(f.Exams))}
	for _, e := range f.Exams {
		r.exams[e.Definition.ID] = &ExamRecord{
			Definition: e.Definition,
			AnswerKey:  e.AnswerKey,
			ClassIDs:   e.ClassIDs,
		}
	}
	return r
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(_ context.Context, id string) (*ExamRecord, error) {
	e, ok := r.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
