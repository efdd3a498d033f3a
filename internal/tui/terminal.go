package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stemsi/exstem-runner/internal/session"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when stdin is not an interactive terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Terminal owns the raw-mode state of the controlling terminal.
type Terminal struct {
	in    *os.File
	out   io.Writer
	state *term.State
}

func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// EnterRaw switches the terminal to raw mode so single keys are delivered
// immediately. Restore must be called before exit.
func (t *Terminal) EnterRaw() error {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	t.state = state
	return nil
}

// Restore leaves raw mode. It is safe to call more than once.
func (t *Terminal) Restore() {
	if t.state == nil {
		return
	}
	_ = term.Restore(int(t.in.Fd()), t.state)
	t.state = nil
}

// Draw renders v to the terminal.
func (t *Terminal) Draw(v session.View) {
	_ = Draw(t.out, v)
}

// PromptLine reads one line in cooked mode.
func (t *Terminal) PromptLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := bufio.NewReader(t.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword reads a line without echo.
func (t *Terminal) PromptPassword(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	raw, err := term.ReadPassword(int(t.in.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// ReadCommands decodes keys from r and sends commands to out until r fails
// or ctx is done. out is closed on return.
func ReadCommands(ctx context.Context, r io.Reader, out chan<- session.Command) {
	defer close(out)

	var dec Decoder
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			for _, cmd := range dec.Feed(b) {
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}
