package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned by every lookup that misses.
var ErrNotFound = errors.New("not found")

// Fixture is the on-disk seed of the dev Exam Authority.
type Fixture struct {
	Students []StudentFixture `json:"students"`
	Exams    []ExamFixture    `json:"exams"`
}

type StudentFixture struct {
	ID           int    `json:"id"`
	NISN         string `json:"nisn"`
	Name         string `json:"name"`
	ClassID      int    `json:"class_id"`
	PasswordHash string `json:"password_hash,omitempty"`
	// Password is a plaintext alternative for throwaway fixtures; it is
	// hashed at load time and never kept.
	Password string `json:"password,omitempty"`
}

// ExamFixture pairs a definition with its answer key. An empty ClassIDs
// list opens the exam to every class.
type ExamFixture struct {
	Definition model.ExamDefinition         `json:"definition"`
	AnswerKey  map[string]model.OptionLabel `json:"answer_key"`
	ClassIDs   []int                        `json:"class_ids,omitempty"`
}

// LoadFixture reads and validates a fixture file. Plaintext passwords are
// hashed with bcryptCost.
func LoadFixture(path string, bcryptCost int) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i := range f.Students {
		s := &f.Students[i]
		if s.PasswordHash != "" || s.Password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("student %d: hash password: %w", s.ID, err)
		}
		s.PasswordHash, s.Password = string(hash), ""
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every definition and that each answer key covers its
// questions with valid labels.
func (f *Fixture) Validate() error {
	seen := make(map[string]bool, len(f.Exams))
	for i := range f.Exams {
		exam := &f.Exams[i]
		def := &exam.Definition
		if fields := validator.Struct(def); fields != nil {
			return fmt.Errorf("exam %q: invalid definition: %v", def.ID, fields)
		}
		if seen[def.ID] {
			return fmt.Errorf("exam %q: duplicate id", def.ID)
		}
		seen[def.ID] = true

		for _, q := range def.Questions {
			for _, opt := range q.Options {
				if opt.Text == "" {
					return fmt.Errorf("exam %q: question %q needs %d non-empty options", def.ID, q.ID, model.OptionCount)
				}
			}
			label, ok := exam.AnswerKey[q.ID]
			if !ok {
				return fmt.Errorf("exam %q: question %q has no answer key", def.ID, q.ID)
			}
			if !label.Valid() {
				return fmt.Errorf("exam %q: question %q has invalid key %q", def.ID, q.ID, label)
			}
		}
		for pos := range def.Questions {
			for i, label := range model.OptionLabels {
				def.Questions[pos].Options[i].Label = label
			}
		}
	}

	nisns := make(map[string]bool, len(f.Students))
	for _, s := range f.Students {
		if s.NISN == "" || s.PasswordHash == "" {
			return fmt.Errorf("student %d: nisn and a password are required", s.ID)
		}
		if nisns[s.NISN] {
			return fmt.Errorf("student %d: duplicate nisn %s", s.ID, s.NISN)
		}
		nisns[s.NISN] = true
	}
	return nil
}
