package transport

import (
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Conn is the minimal surface the session needs from a socket.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes a Conn. Injected in tests.
type Dialer interface {
	Dial(rawURL string) (Conn, error)
}

// wsDialer dials with gorilla/websocket.
type wsDialer struct{}

// NewDialer returns the websocket-backed dialer.
func NewDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) WriteJSON(v any) error { return c.conn.WriteJSON(v) }

func (c wsConn) Close() error { return c.conn.Close() }

// BuildURL derives the push-connection URL from the server origin plus
// the fixed /ws path, optionally scoped to a project. http origins map
// to ws, https to wss; ws/wss origins pass through.
func BuildURL(origin, projectID string) (string, error) {
	var query url.Values
	if projectID != "" {
		query = url.Values{"project": []string{projectID}}
	}
	return buildSocketURL(origin, "/ws", query)
}

// BuildStreamURL derives the per-worker output stream endpoint from the
// server origin.
func BuildStreamURL(origin, workerID string) (string, error) {
	return buildSocketURL(origin, "/workers/"+url.PathEscape(workerID)+"/stream", nil)
}

func buildSocketURL(origin, path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
