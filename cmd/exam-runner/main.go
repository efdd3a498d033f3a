package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/answerstore"
	"github.com/stemsi/exstem-runner/internal/authority"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/logger"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/tui"
	"github.com/stemsi/exstem-runner/internal/worker"
)

func main() {
	var (
		examID string
		login  bool
	)
	flag.StringVar(&examID, "exam", "", "exam id to take")
	flag.BoolVar(&login, "login", false, "sign in with NISN and password before starting")
	flag.Parse()
	if examID == "" {
		fmt.Fprintln(os.Stderr, "usage: exam-runner -exam <id> [-login]")
		os.Exit(2)
	}

	if err := run(examID, login); err != nil {
		fmt.Fprintf(os.Stderr, "exam-runner: %v\n", err)
		os.Exit(1)
	}
}

func run(examID string, login bool) error {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// The terminal belongs to the exam screen, so logs go to a file.
	logFile, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logFile)
	log.Info().
		Str("exam_id", examID).
		Str("authority", cfg.AuthorityURL).
		Str("answer_store", cfg.AnswerStore).
		Bool("autosync", cfg.Autosync).
		Msg("Starting ExStem exam runner")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Open Answer Store ─────────────────────────────────────────────
	store, closeStore, err := answerstore.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open answer store: %w", err)
	}
	defer closeStore()

	// ─── Authority Client ──────────────────────────────────────────────
	credential := authority.NewCredential(cfg.AuthToken)
	client := authority.NewHTTPClient(cfg.AuthorityURL, &http.Client{Timeout: cfg.HTTPTimeout}, credential, log)

	terminal := tui.NewTerminal(os.Stdin, os.Stdout)
	if _, err := credential.Token(); login || err != nil {
		if err := signIn(ctx, terminal, client); err != nil {
			return err
		}
	}

	// ─── Autosave Mirror ───────────────────────────────────────────────
	var onSaved func(string, model.OptionLabel)
	mirrorDone := make(chan struct{})
	mirrorCtx, stopMirror := context.WithCancel(context.Background())
	defer stopMirror()
	if cfg.Autosync {
		mirror := worker.NewAutosaveWorker(cfg.AuthorityURL, credential, log)
		go func() {
			mirror.Start(mirrorCtx)
			close(mirrorDone)
		}()
		onSaved = func(qID string, label model.OptionLabel) {
			mirror.Push(worker.Answer{ExamID: examID, QuestionID: qID, Label: label})
		}
	} else {
		close(mirrorDone)
	}

	// ─── Session ───────────────────────────────────────────────────────
	sess := session.New(session.Options{
		ExamID:         examID,
		Authority:      client,
		Store:          store,
		Orders:         store,
		LowTimeSeconds: cfg.LowTimeSeconds,
		FlashDuration:  cfg.FlashDuration,
		OnSaved:        onSaved,
		Log:            log,
	})

	if err := terminal.EnterRaw(); err != nil {
		return err
	}
	defer terminal.Restore()

	input := make(chan session.Command)
	go tui.ReadCommands(ctx, os.Stdin, input)

	runner := session.NewRunner(sess, session.RunnerOptions{
		Input:  input,
		Render: terminal.Draw,
	})
	runErr := runner.Run(ctx)
	terminal.Restore()

	// Give the mirror a bounded chance to flush.
	stopMirror()
	select {
	case <-mirrorDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Autosave mirror did not stop in time")
	}

	printSummary(sess)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func signIn(ctx context.Context, terminal *tui.Terminal, client *authority.HTTPClient) error {
	nisn, err := terminal.PromptLine("NISN: ")
	if err != nil {
		return fmt.Errorf("read nisn: %w", err)
	}
	password, err := terminal.PromptPassword("Password: ")
	if err != nil {
		return err
	}
	if _, err := client.Login(ctx, nisn, password); err != nil {
		if se := session.Classify(err); se.Kind != session.KindTransient {
			return errors.New("sign-in rejected: check your NISN and password")
		}
		return fmt.Errorf("sign-in failed: %w", err)
	}
	return nil
}

func printSummary(sess *session.Session) {
	switch sess.State() {
	case model.StateComplete:
		fmt.Println("Exam submitted.")
	case model.StateBlocked:
		if n := sess.Notice(); n != nil {
			fmt.Println(n.Message)
		}
	case model.StateActive, model.StateShowingInstructions:
		fmt.Println("Exam not submitted. Your answers are saved on this device; run again to resume.")
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
