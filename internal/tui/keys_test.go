package tui

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/stemsi/exstem-runner/internal/session"
)

func feedAll(d *Decoder, input string) []session.Command {
	var out []session.Command
	for i := 0; i < len(input); i++ {
		out = append(out, d.Feed(input[i])...)
	}
	return out
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []session.Command
	}{
		{"digits select", "14", []session.Command{session.Select(0), session.Select(3)}},
		{"digit out of range ignored", "5", nil},
		{"arrows", "\x1b[D\x1b[C\x1b[A\x1b[B", []session.Command{
			session.Simple(session.CmdPrevious), session.Simple(session.CmdNext),
			session.Simple(session.CmdPrevious), session.Simple(session.CmdNext),
		}},
		{"jump", "g12\r", []session.Command{session.Jump(11)}},
		{"jump digits are not selections", "g3\r2", []session.Command{session.Jump(2), session.Select(1)}},
		{"jump backspace", "g19\x7f\r", []session.Command{session.Jump(0)}},
		{"jump zero ignored", "g0\r", nil},
		{"jump cancelled by other key", "gx1", []session.Command{session.Select(0)}},
		{"submit confirm", "sy", []session.Command{session.Simple(session.CmdSubmit), session.Simple(session.CmdConfirm)}},
		{"decline retry quit", "nrq", []session.Command{
			session.Simple(session.CmdDecline), session.Simple(session.CmdRetry), session.Simple(session.CmdQuit),
		}},
		{"ctrl-c quits", "\x03", []session.Command{session.Simple(session.CmdQuit)}},
		{"enter acknowledges then begins", "\r", []session.Command{
			session.Simple(session.CmdAcknowledge), session.Simple(session.CmdBegin),
		}},
		{"lone escape then key", "\x1b1", []session.Command{session.Select(0)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Decoder
			got := feedAll(&d, tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecoderJumping(t *testing.T) {
	var d Decoder
	feedAll(&d, "g4")
	if digits, ok := d.Jumping(); !ok || digits != "4" {
		t.Fatalf("Jumping = %q, %v", digits, ok)
	}
	feedAll(&d, "\r")
	if _, ok := d.Jumping(); ok {
		t.Fatalf("still jumping after Enter")
	}
}

func TestReadCommandsClosesOnEOF(t *testing.T) {
	out := make(chan session.Command, 8)
	ReadCommands(context.Background(), strings.NewReader("2s"), out)

	var got []session.Command
	for cmd := range out {
		got = append(got, cmd)
	}
	want := []session.Command{session.Select(1), session.Simple(session.CmdSubmit)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
