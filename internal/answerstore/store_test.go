package answerstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/database"
	"github.com/stemsi/exstem-runner/internal/model"
)

// runBackendSuite exercises the behaviour every backend must share.
func runBackendSuite(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("load unknown exam returns empty map", func(t *testing.T) {
		got, err := b.Load(ctx, "never-saved")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil map, got %v", got)
		}
	})

	t.Run("save then load round trips", func(t *testing.T) {
		want := model.AnswerMap{"q1": model.OptionB, "q2": model.OptionD}
		if err := b.Save(ctx, "exam-1", want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := b.Load(ctx, "exam-1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("save replaces previous map", func(t *testing.T) {
		if err := b.Save(ctx, "exam-2", model.AnswerMap{"q1": model.OptionA, "q2": model.OptionA}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		want := model.AnswerMap{"q1": model.OptionC}
		if err := b.Save(ctx, "exam-2", want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := b.Load(ctx, "exam-2")
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("exams are isolated", func(t *testing.T) {
		_ = b.Save(ctx, "exam-a", model.AnswerMap{"q1": model.OptionA})
		_ = b.Save(ctx, "exam-b", model.AnswerMap{"q1": model.OptionB})
		a, _ := b.Load(ctx, "exam-a")
		if a["q1"] != model.OptionA {
			t.Fatalf("exam-a overwritten: %v", a)
		}
	})

	t.Run("question order round trips", func(t *testing.T) {
		order := []string{"q3", "q1", "q2"}
		if err := b.SaveOrder(ctx, "exam-3", order); err != nil {
			t.Fatalf("SaveOrder: %v", err)
		}
		got, err := b.LoadOrder(ctx, "exam-3")
		if err != nil {
			t.Fatalf("LoadOrder: %v", err)
		}
		if len(got) != len(order) {
			t.Fatalf("got %v, want %v", got, order)
		}
		for i := range order {
			if got[i] != order[i] {
				t.Fatalf("got %v, want %v", got, order)
			}
		}
	})

	t.Run("clear evicts answers and order", func(t *testing.T) {
		_ = b.Save(ctx, "exam-4", model.AnswerMap{"q1": model.OptionA})
		_ = b.SaveOrder(ctx, "exam-4", []string{"q1"})
		if err := b.Clear(ctx, "exam-4"); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		got, _ := b.Load(ctx, "exam-4")
		if len(got) != 0 {
			t.Fatalf("answers survived Clear: %v", got)
		}
		order, _ := b.LoadOrder(ctx, "exam-4")
		if len(order) != 0 {
			t.Fatalf("order survived Clear: %v", order)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runBackendSuite(t, NewMemory())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Save(ctx, "e", model.AnswerMap{"q1": model.OptionA})

	got, _ := s.Load(ctx, "e")
	got["q1"] = model.OptionD

	again, _ := s.Load(ctx, "e")
	if again["q1"] != model.OptionA {
		t.Fatalf("mutation leaked into store: %v", again)
	}
}

func openTestSQLite(t *testing.T, path, subject string) (*SQLiteStore, func()) {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	store, err := NewSQLite(ctx, db, subject)
	if err != nil {
		db.Close()
		t.Fatalf("NewSQLite store: %v", err)
	}
	return store, func() { db.Close() }
}

func TestSQLiteStore(t *testing.T) {
	store, closeFn := openTestSQLite(t, filepath.Join(t.TempDir(), "answers.db"), "s-1")
	defer closeFn()
	runBackendSuite(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "answers.db")
	want := model.AnswerMap{"q1": model.OptionB, "q7": model.OptionC}

	first, closeFirst := openTestSQLite(t, path, "s-1")
	if err := first.Save(ctx, "exam-1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	closeFirst()

	second, closeSecond := openTestSQLite(t, path, "s-1")
	defer closeSecond()
	got, err := second.Load(ctx, "exam-1")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSQLiteStore_SubjectsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "answers.db")

	alice, closeFn := openTestSQLite(t, path, "alice")
	defer closeFn()
	if err := alice.Save(ctx, "exam-1", model.AnswerMap{"q1": model.OptionA}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	bob := &SQLiteStore{db: alice.db, subjectID: "bob"}
	got, err := bob.Load(ctx, "exam-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("bob sees alice's answers: %v", got)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	runBackendSuite(t, NewRedis(rdb, "s-1"))
}

func TestRedisStore_UsesSubjectKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedis(rdb, "s-9")
	if err := s.Save(context.Background(), "exam-1", model.AnswerMap{"q1": model.OptionD}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	key := config.CacheKey.SubjectAnswersKey("s-9", "exam-1")
	if got := mr.HGet(key, "q1"); got != "D" {
		t.Fatalf("HGET %s q1 = %q, want D", key, got)
	}
}

func TestRedisStore_SaveEmptyMapDeletesKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := NewRedis(rdb, "s-1")
	_ = s.Save(ctx, "exam-1", model.AnswerMap{"q1": model.OptionA})
	if err := s.Save(ctx, "exam-1", model.AnswerMap{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if mr.Exists(config.CacheKey.SubjectAnswersKey("s-1", "exam-1")) {
		t.Fatal("expected key to be removed")
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("EXSTEM_PG_TEST_URL")
	if url == "" {
		t.Skip("EXSTEM_PG_TEST_URL not set; skipping postgres integration test")
	}

	if err := Migrate(url); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx := context.Background()
	pool, closePool, err := database.OpenPostgres(ctx, url, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer closePool()

	store := NewPostgres(pool, "test-subject")
	for _, exam := range []string{"exam-1", "exam-2", "exam-3", "exam-4", "exam-a", "exam-b"} {
		_ = store.Clear(ctx, exam)
	}
	runBackendSuite(t, store)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := &config.Config{AnswerStore: "floppy"}
	_, _, err := Open(context.Background(), cfg, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		AnswerStore: "sqlite",
		SQLitePath:  filepath.Join(t.TempDir(), "runner.db"),
		SubjectID:   "s-1",
	}
	b, closeFn, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, ok := b.(*SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", b)
	}
}
