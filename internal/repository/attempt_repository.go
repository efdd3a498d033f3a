package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-runner/internal/config"
)

// AttemptRepository counts submitted attempts per student and exam in a
// Redis hash, so counts survive an authority restart when Redis does.
type AttemptRepository struct {
	rdb *redis.Client
}

func NewAttemptRepository(rdb *redis.Client) *AttemptRepository {
	return &AttemptRepository{rdb: rdb}
}

// Used returns how many attempts the student has submitted.
func (r *AttemptRepository) Used(ctx context.Context, examID string, studentID int) (int, error) {
	n, err := r.rdb.HGet(ctx, config.CacheKey.ExamAttemptsKey(examID), strconv.Itoa(studentID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get attempts: %w", err)
	}
	return n, nil
}

// Record counts one more attempt and returns the new total.
func (r *AttemptRepository) Record(ctx context.Context, examID string, studentID int) (int, error) {
	n, err := r.rdb.HIncrBy(ctx, config.CacheKey.ExamAttemptsKey(examID), strconv.Itoa(studentID), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return int(n), nil
}
