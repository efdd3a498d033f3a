package answerstore

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-runner/internal/model"
)

// MemoryStore keeps everything in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	answers map[string]model.AnswerMap
	orders  map[string][]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		answers: make(map[string]model.AnswerMap),
		orders:  make(map[string][]string),
	}
}

func (s *MemoryStore) Load(_ context.Context, examID string) (model.AnswerMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[examID].Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, examID string, answers model.AnswerMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[examID] = answers.Clone()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, examID)
	delete(s.orders, examID)
	return nil
}

func (s *MemoryStore) LoadOrder(_ context.Context, examID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[examID]
	if order == nil {
		return nil, nil
	}
	return append([]string(nil), order...), nil
}

func (s *MemoryStore) SaveOrder(_ context.Context, examID string, questionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[examID] = append([]string(nil), questionIDs...)
	return nil
}
