package repository

import (
	"context"

	"github.com/stemsi/exstem-runner/internal/model"
)

// StudentRepository serves students loaded from a fixture.
type StudentRepository struct {
	byID   map[int]*model.Student
	byNISN map[string]*model.Student
}

func NewStudentRepository(f *Fixture) *StudentRepository {
	r := &StudentRepository{
		byID:   make(map[int]*model.Student, len(f.Students)),
		byNISN: make(map[string]*model.Student, len(f.Students)),
	}
	for _, s := range f.Students {
		st := &model.Student{
			ID:           s.ID,
			NISN:         s.NISN,
			Name:         s.Name,
			ClassID:      s.ClassID,
			PasswordHash: s.PasswordHash,
		}
		r.byID[st.ID] = st
		r.byNISN[st.NISN] = st
	}
	return r
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(_ context.Context, id int) (*model.Student, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetByNISN retrieves a student by their unique NISN.
func (r *StudentRepository) GetByNISN(_ context.Context, nisn string) (*model.Student, error) {
	s, ok := r.byNISN[nisn]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}
