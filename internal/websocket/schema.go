package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
)

// AutosaveRequest mirrors a single answer. MsgID is echoed in the reply.
type AutosaveRequest struct {
	Action Action `json:"action"`
	MsgID  string `json:"msg_id,omitempty"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// PingRequest keeps an idle stream alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	MsgID  string `json:"msg_id,omitempty"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	MsgID string `json:"msg_id,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Reply is the client-side view of any server event.
type Reply struct {
	Event  Event  `json:"event"`
	MsgID  string `json:"msg_id,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}
