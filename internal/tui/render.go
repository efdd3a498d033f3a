// Package tui is the exam runner's terminal front-end: a key decoder and a
// renderer that is a pure function of session.View.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/session"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	rule        = "────────────────────────────────────────────────────────────"
)

// Draw clears the terminal and writes the frame. Raw mode needs explicit
// carriage returns.
func Draw(w io.Writer, v session.View) error {
	frame := strings.ReplaceAll(Frame(v), "\n", "\r\n")
	_, err := io.WriteString(w, clearScreen+frame)
	return err
}

// Frame renders v as plain text.
func Frame(v session.View) string {
	var b strings.Builder

	title := v.Title
	if title == "" {
		title = v.ExamID
	}
	header := "ExStem | " + title
	if v.Clock != "" && v.State == model.StateActive {
		clock := "Time left " + v.Clock
		if v.Urgent {
			clock += " (!)"
		}
		header += " | " + clock
	}
	b.WriteString(header + "\n" + rule + "\n")

	switch v.State {
	case model.StateCheckingEligibility:
		if v.Notice == nil {
			b.WriteString("Checking eligibility...\n")
		}
	case model.StateShowingInstructions:
		writeInstructions(&b, v)
	case model.StateActive:
		writeQuestion(&b, v)
	case model.StateSubmitting:
		b.WriteString("Submitting your answers...\n")
	case model.StateComplete:
		writeResult(&b, v)
	case model.StateBlocked:
		if v.Notice == nil {
			b.WriteString("This exam cannot be taken right now.\n")
		}
	}

	if v.Notice != nil {
		b.WriteString("\n" + rule + "\n")
		b.WriteString("! " + v.Notice.Message + "\n")
	}

	b.WriteString("\n" + footer(v) + "\n")
	return b.String()
}

func writeInstructions(b *strings.Builder, v session.View) {
	b.WriteString(v.Instructions + "\n\n")
	if v.Total > 0 {
		fmt.Fprintf(b, "%d questions, %s on the clock.\n", v.Total, v.Clock)
	}
	if !v.Snapshot.Attempts.Unlimited {
		fmt.Fprintf(b, "Attempts remaining: %d\n", v.Snapshot.Attempts.Remaining)
	}
}

func writeQuestion(b *strings.Builder, v session.View) {
	if v.Question == nil {
		return
	}
	q := v.Question
	fmt.Fprintf(b, "Question %d of %d | answered %d/%d\n\n", v.Index+1, v.Total, v.Answered, v.Total)
	b.WriteString(q.Prompt + "\n")
	if q.ImageURL != "" {
		b.WriteString("[image] " + q.ImageURL + "\n")
	}
	b.WriteString("\n")
	for i, opt := range q.Options {
		marker := "   "
		if opt.Label == v.Selected && v.Selected != "" {
			marker = " > "
		}
		fmt.Fprintf(b, "%s[%d] %s. %s\n", marker, i+1, opt.Label, opt.Text)
	}

	if v.Flash != "" {
		b.WriteString("\n" + v.Flash + "\n")
	}
	if v.Confirming {
		b.WriteString("\n" + rule + "\n")
		fmt.Fprintf(b, "Submit all %d answers now? This cannot be undone. (y/n)\n", v.Answered)
	}
}

func writeResult(b *strings.Builder, v session.View) {
	r := v.Result
	if r == nil {
		b.WriteString("Submitted.\n")
		return
	}
	if r.Forced {
		b.WriteString("Time ran out; your answers were submitted automatically.\n")
	}
	if !r.Immediate {
		b.WriteString(r.Message + "\n")
		fmt.Fprintf(b, "Time spent: %s\n", r.TimeSpent)
		return
	}

	verdict := "NOT PASSED"
	if r.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(b, "%s | score %g | %.2f%%\n", verdict, r.Score, r.Percentage)
	if r.Message != "" {
		b.WriteString(r.Message + "\n")
	}
	fmt.Fprintf(b, "Time spent: %s\n", r.TimeSpent)

	if len(r.Outcomes) > 0 {
		b.WriteString("\n")
		for i, o := range r.Outcomes {
			submitted := string(o.Submitted)
			if submitted == "" {
				submitted = "-"
			}
			if o.IsCorrect {
				fmt.Fprintf(b, "%3d. %s correct\n", i+1, submitted)
			} else {
				fmt.Fprintf(b, "%3d. %s wrong, answer %s\n", i+1, submitted, o.Correct)
			}
		}
	}
}

func footer(v session.View) string {
	switch {
	case v.Notice != nil && v.State == model.StateCheckingEligibility:
		return "r retry | q quit"
	case v.Notice != nil && v.State != model.StateBlocked:
		return "Enter continue"
	}

	switch v.State {
	case model.StateShowingInstructions:
		return "Enter begin | q quit"
	case model.StateActive:
		if v.Confirming {
			return "y submit | n keep working"
		}
		return "1-4 select | arrows move | g<n> Enter jump | s submit | q quit"
	case model.StateComplete:
		if v.Result != nil && v.Result.RetryOffered {
			return fmt.Sprintf("r try again (%s left) | q quit", attemptsLeft(v.Snapshot.Attempts))
		}
	}
	return "q quit"
}

func attemptsLeft(a model.Attempts) string {
	if a.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", a.Remaining)
}
