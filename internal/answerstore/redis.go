package answerstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
)

// RedisStore keeps answers in a hash per (subject, exam), the same layout the
// exam backend uses for its autosave buffer.
type RedisStore struct {
	rdb       *redis.Client
	subjectID string
}

// NewRedis returns a store scoped to subjectID.
func NewRedis(rdb *redis.Client, subjectID string) *RedisStore {
	return &RedisStore{rdb: rdb, subjectID: subjectID}
}

func (s *RedisStore) Load(ctx context.Context, examID string) (model.AnswerMap, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.SubjectAnswersKey(s.subjectID, examID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	answers := make(model.AnswerMap, len(raw))
	for qID, label := range raw {
		answers[qID] = model.OptionLabel(label)
	}
	return answers, nil
}

func (s *RedisStore) Save(ctx context.Context, examID string, answers model.AnswerMap) error {
	key := config.CacheKey.SubjectAnswersKey(s.subjectID, examID)

	// Replace atomically so a crash never leaves a half-written map.
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(answers) > 0 {
		fields := make(map[string]interface{}, len(answers))
		for qID, label := range answers {
			fields[qID] = string(label)
		}
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// Put records a single answer without touching the others, so concurrent
// autosaves for different questions never overwrite each other.
func (s *RedisStore) Put(ctx context.Context, examID, questionID string, label model.OptionLabel) error {
	err := s.rdb.HSet(ctx, config.CacheKey.SubjectAnswersKey(s.subjectID, examID), questionID, string(label)).Err()
	if err != nil {
		return fmt.Errorf("put answer: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, examID string) error {
	err := s.rdb.Del(ctx,
		config.CacheKey.SubjectAnswersKey(s.subjectID, examID),
		config.CacheKey.SubjectQuestionOrderKey(s.subjectID, examID),
	).Err()
	if err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadOrder(ctx context.Context, examID string) ([]string, error) {
	order, err := s.rdb.LRange(ctx, config.CacheKey.SubjectQuestionOrderKey(s.subjectID, examID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load question order: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}
	return order, nil
}

func (s *RedisStore) SaveOrder(ctx context.Context, examID string, questionIDs []string) error {
	key := config.CacheKey.SubjectQuestionOrderKey(s.subjectID, examID)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(questionIDs) > 0 {
		values := make([]interface{}, len(questionIDs))
		for i, id := range questionIDs {
			values[i] = id
		}
		pipe.RPush(ctx, key, values...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save question order: %w", err)
	}
	return nil
}
