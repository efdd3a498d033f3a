package session

// CommandKind enumerates what the front-end can ask of a session.
type CommandKind int

const (
	CmdSelect CommandKind = iota // Option holds the zero-based position
	CmdNext
	CmdPrevious
	CmdJump // Index holds the zero-based question index
	CmdSubmit
	CmdConfirm
	CmdDecline
	CmdAcknowledge
	CmdBegin
	CmdRetry
	CmdQuit
)

// Command is one front-end input, already decoded from keys.
type Command struct {
	Kind   CommandKind
	Option int
	Index  int
}

func Select(pos int) Command { return Command{Kind: CmdSelect, Option: pos} }

func Jump(index int) Command { return Command{Kind: CmdJump, Index: index} }

func Simple(kind CommandKind) Command { return Command{Kind: kind} }
