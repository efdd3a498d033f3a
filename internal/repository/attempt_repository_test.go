package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestAttemptRepositoryCountsPerStudent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewAttemptRepository(rdb)
	ctx := context.Background()

	if n, err := repo.Used(ctx, "quiz", 1); err != nil || n != 0 {
		t.Fatalf("Used before any attempt = %d, %v", n, err)
	}
	for want := 1; want <= 2; want++ {
		n, err := repo.Record(ctx, "quiz", 1)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if n != want {
			t.Errorf("Record = %d, want %d", n, want)
		}
	}
	if n, _ := repo.Used(ctx, "quiz", 1); n != 2 {
		t.Errorf("Used = %d, want 2", n)
	}
	if n, _ := repo.Used(ctx, "quiz", 2); n != 0 {
		t.Errorf("other student Used = %d, want 0", n)
	}
	if n, _ := repo.Used(ctx, "other", 1); n != 0 {
		t.Errorf("other exam Used = %d, want 0", n)
	}
}
