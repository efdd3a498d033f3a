package answerstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-runner/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// NewMigrator returns a golang-migrate instance over the embedded migrations.
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration.
func Migrate(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// PostgresStore shares answers through a central database, for lab
// deployments where a workstation may be swapped mid-exam.
type PostgresStore struct {
	pool      *pgxpool.Pool
	subjectID string
}

// NewPostgres returns a store scoped to subjectID. Run Migrate first.
func NewPostgres(pool *pgxpool.Pool, subjectID string) *PostgresStore {
	return &PostgresStore{pool: pool, subjectID: subjectID}
}

func (s *PostgresStore) Load(ctx context.Context, examID string) (model.AnswerMap, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT answers FROM exam_answers WHERE subject_id = $1 AND exam_id = $2`,
		s.subjectID, examID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AnswerMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	return decodeAnswers(raw)
}

func (s *PostgresStore) Save(ctx context.Context, examID string, answers model.AnswerMap) error {
	payload, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO exam_answers (subject_id, exam_id, answers, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (subject_id, exam_id)
		 DO UPDATE SET answers = EXCLUDED.answers, updated_at = NOW()`,
		s.subjectID, examID, payload,
	)
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, examID string) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM exam_answers WHERE subject_id = $1 AND exam_id = $2`, s.subjectID, examID)
	batch.Queue(`DELETE FROM exam_question_orders WHERE subject_id = $1 AND exam_id = $2`, s.subjectID, examID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadOrder(ctx context.Context, examID string) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT question_ids FROM exam_question_orders WHERE subject_id = $1 AND exam_id = $2`,
		s.subjectID, examID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load question order: %w", err)
	}
	return decodeOrder(raw)
}

func (s *PostgresStore) SaveOrder(ctx context.Context, examID string, questionIDs []string) error {
	payload, err := json.Marshal(questionIDs)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO exam_question_orders (subject_id, exam_id, question_ids)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (subject_id, exam_id) DO UPDATE SET question_ids = EXCLUDED.question_ids`,
		s.subjectID, examID, payload,
	)
	if err != nil {
		return fmt.Errorf("save question order: %w", err)
	}
	return nil
}
