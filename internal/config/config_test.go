package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANSWER_STORE", "")
	t.Setenv("LOW_TIME_SECONDS", "")
	t.Setenv("AUTOSYNC", "")

	cfg := Load()
	if cfg.AnswerStore != "sqlite" {
		t.Fatalf("AnswerStore = %q, want sqlite", cfg.AnswerStore)
	}
	if cfg.LowTimeSeconds != 300 {
		t.Fatalf("LowTimeSeconds = %d, want 300", cfg.LowTimeSeconds)
	}
	if cfg.FlashDuration != 1500*time.Millisecond {
		t.Fatalf("FlashDuration = %v", cfg.FlashDuration)
	}
	if cfg.Autosync {
		t.Fatalf("Autosync should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANSWER_STORE", "redis")
	t.Setenv("LOW_TIME_SECONDS", "60")
	t.Setenv("AUTOSYNC", "true")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()
	if cfg.AnswerStore != "redis" || cfg.LowTimeSeconds != 60 || !cfg.Autosync {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("LOW_TIME_SECONDS", "soon")
	if got := getEnvInt("LOW_TIME_SECONDS", 42); got != 42 {
		t.Fatalf("getEnvInt = %d, want 42", got)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.SubjectAnswersKey("s1", "e1"); got != "subject:s1:exam:e1:answers" {
		t.Fatalf("SubjectAnswersKey = %q", got)
	}
	if got := CacheKey.SubjectQuestionOrderKey("s1", "e1"); got != "subject:s1:exam:e1:question_order" {
		t.Fatalf("SubjectQuestionOrderKey = %q", got)
	}
}
