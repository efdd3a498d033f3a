package session

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
)

// Authority is the subset of the Exam Authority a session needs.
type Authority interface {
	Eligibility(ctx context.Context, examID string) (model.EligibilitySnapshot, error)
	Definition(ctx context.Context, examID string) (*model.ExamDefinition, error)
	Submit(ctx context.Context, examID string, sub model.Submission) (*model.SubmissionResult, error)
}

// Gate asks the authority whether the subject may start or resume.
// It never mutates local state.
type Gate struct {
	authority Authority
	log       zerolog.Logger
}

func NewGate(authority Authority, log zerolog.Logger) *Gate {
	return &Gate{authority: authority, log: log}
}

// Check returns the snapshot when the exam is available. An unavailable
// exam yields a KindUnavailable error carrying the server's reason, along
// with the snapshot so callers can still show the attempt count.
func (g *Gate) Check(ctx context.Context, examID string) (model.EligibilitySnapshot, error) {
	snap, err := g.authority.Eligibility(ctx, examID)
	if err != nil {
		return model.EligibilitySnapshot{}, Classify(err)
	}
	if !snap.Available {
		g.log.Info().Str("exam_id", examID).Str("reason", snap.Reason).Msg("Exam not available")
		return snap, unavailableError(snap.Reason)
	}
	return snap, nil
}
