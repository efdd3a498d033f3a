package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, msgID, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		MsgID: msgID,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	return ReadJSONWithin(conn, v, 5*time.Minute)
}

// ReadJSONWithin is ReadJSON with a caller-chosen deadline.
func ReadJSONWithin(conn *websocket.Conn, v interface{}, d time.Duration) error {
	conn.SetReadDeadline(time.Now().Add(d))
	return conn.ReadJSON(v)
}

// StreamURL builds the exam stream endpoint from the authority's HTTP base
// URL, carrying the token as a query parameter.
func StreamURL(baseURL, examID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse authority url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/v1/student/exams/" + examID + "/stream"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Dial opens a client connection to rawURL.
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial stream: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return conn, nil
}
