package answerstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-runner/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS answers (
    subject_id TEXT NOT NULL,
    exam_id    TEXT NOT NULL,
    payload    TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (subject_id, exam_id)
);

CREATE TABLE IF NOT EXISTS question_orders (
    subject_id TEXT NOT NULL,
    exam_id    TEXT NOT NULL,
    payload    TEXT NOT NULL,
    PRIMARY KEY (subject_id, exam_id)
);
`

// SQLiteStore is the default local store: one row per (subject, exam).
type SQLiteStore struct {
	db        *sql.DB
	subjectID string
}

// NewSQLite creates the schema if needed and returns a store scoped to subjectID.
func NewSQLite(ctx context.Context, db *sql.DB, subjectID string) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, subjectID: subjectID}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, examID string) (model.AnswerMap, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM answers WHERE subject_id = ? AND exam_id = ?`,
		s.subjectID, examID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnswerMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	return decodeAnswers([]byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, examID string, answers model.AnswerMap) error {
	payload, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (subject_id, exam_id, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (subject_id, exam_id) DO UPDATE
		 SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.subjectID, examID, string(payload), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, examID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM answers WHERE subject_id = ? AND exam_id = ?`,
		`DELETE FROM question_orders WHERE subject_id = ? AND exam_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, s.subjectID, examID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadOrder(ctx context.Context, examID string) ([]string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM question_orders WHERE subject_id = ? AND exam_id = ?`,
		s.subjectID, examID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load question order: %w", err)
	}
	return decodeOrder([]byte(payload))
}

func (s *SQLiteStore) SaveOrder(ctx context.Context, examID string, questionIDs []string) error {
	payload, err := json.Marshal(questionIDs)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO question_orders (subject_id, exam_id, payload)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subject_id, exam_id) DO UPDATE SET payload = excluded.payload`,
		s.subjectID, examID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save question order: %w", err)
	}
	return nil
}
