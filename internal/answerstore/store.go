// Package answerstore keeps in-progress answers durable between process
// restarts. Every backend is write-through: Save returns only after the
// whole map has been committed.
package answerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-runner/internal/model"
)

// ErrUnknownDriver is returned by Open for an unsupported ANSWER_STORE value.
var ErrUnknownDriver = errors.New("unknown answer store driver")

// Store persists the AnswerMap of an exam, keyed by exam id.
type Store interface {
	// Load returns the saved answers, or an empty map when nothing is saved.
	Load(ctx context.Context, examID string) (model.AnswerMap, error)
	// Save replaces the saved answers for examID.
	Save(ctx context.Context, examID string, answers model.AnswerMap) error
	// Clear evicts everything saved for examID, question order included.
	Clear(ctx context.Context, examID string) error
}

// OrderStore persists the question order shown to the subject so a resumed
// session presents questions in the same positions.
type OrderStore interface {
	LoadOrder(ctx context.Context, examID string) ([]string, error)
	SaveOrder(ctx context.Context, examID string, questionIDs []string) error
}

func encodeAnswers(answers model.AnswerMap) ([]byte, error) {
	if answers == nil {
		answers = model.AnswerMap{}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return b, nil
}

func decodeAnswers(raw []byte) (model.AnswerMap, error) {
	answers := model.AnswerMap{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return answers, nil
}

func decodeOrder(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("unmarshal question order: %w", err)
	}
	return order, nil
}
