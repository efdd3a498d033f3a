package tui

import (
	"strconv"

	"github.com/stemsi/exstem-runner/internal/session"
)

const (
	keyCtrlC     = 0x03
	keyEnter     = '\r'
	keyNewline   = '\n'
	keyEscape    = 0x1b
	keyBackspace = 0x7f
)

type decodeMode int

const (
	modeNormal decodeMode = iota
	modeEscape
	modeCSI
	modeJump
)

// Decoder turns raw terminal bytes into session commands. It keeps the
// little state needed for arrow-key sequences and g<n>⏎ jumps.
type Decoder struct {
	mode   decodeMode
	digits []byte
}

// Jumping reports whether a g<n> entry is in progress, and its digits.
func (d *Decoder) Jumping() (string, bool) {
	return string(d.digits), d.mode == modeJump
}

// Feed consumes one byte. Enter yields an acknowledgement followed by a
// begin: the session ignores whichever does not apply to its state.
func (d *Decoder) Feed(b byte) []session.Command {
	switch d.mode {
	case modeEscape:
		if b == '[' {
			d.mode = modeCSI
			return nil
		}
		d.mode = modeNormal
		return d.Feed(b)

	case modeCSI:
		d.mode = modeNormal
		switch b {
		case 'A', 'D':
			return cmds(session.Simple(session.CmdPrevious))
		case 'B', 'C':
			return cmds(session.Simple(session.CmdNext))
		}
		return nil

	case modeJump:
		switch {
		case b >= '0' && b <= '9':
			if len(d.digits) < 4 {
				d.digits = append(d.digits, b)
			}
			return nil
		case b == keyBackspace && len(d.digits) > 0:
			d.digits = d.digits[:len(d.digits)-1]
			return nil
		case b == keyEnter || b == keyNewline:
			n, err := strconv.Atoi(string(d.digits))
			d.reset()
			if err != nil || n < 1 {
				return nil
			}
			return cmds(session.Jump(n - 1))
		case b == keyCtrlC:
			d.reset()
			return cmds(session.Simple(session.CmdQuit))
		case b == keyEscape:
			d.reset()
			d.mode = modeEscape
			return nil
		}
		d.reset()
		return nil
	}

	switch b {
	case '1', '2', '3', '4':
		return cmds(session.Select(int(b - '1')))
	case 'g', 'G':
		d.mode = modeJump
		d.digits = d.digits[:0]
	case 's', 'S':
		return cmds(session.Simple(session.CmdSubmit))
	case 'y', 'Y':
		return cmds(session.Simple(session.CmdConfirm))
	case 'n', 'N':
		return cmds(session.Simple(session.CmdDecline))
	case 'r', 'R':
		return cmds(session.Simple(session.CmdRetry))
	case 'q', 'Q', keyCtrlC:
		return cmds(session.Simple(session.CmdQuit))
	case keyEnter, keyNewline:
		return cmds(session.Simple(session.CmdAcknowledge), session.Simple(session.CmdBegin))
	case keyEscape:
		d.mode = modeEscape
	}
	return nil
}

func (d *Decoder) reset() {
	d.mode = modeNormal
	d.digits = d.digits[:0]
}

func cmds(c ...session.Command) []session.Command { return c }
