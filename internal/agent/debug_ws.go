package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/frkn-dev/pony/internal/model"
)

// debugQuery is the request body on the agent debug WebSocket (§6): a single
// request/response round trip per connection, keyed by kind.
type debugQuery struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

const (
	debugKindGetConnections = "get_connections"
	debugKindGetNodes       = "get_nodes"
	debugKindGetConnInfo    = "get_conn_info"
	debugKindGetUsers       = "get_users"
)

// NewDebugHandler returns the agent's optional debug WebSocket endpoint,
// gated on the Sec-WebSocket-Protocol header carrying token (§6). It serves
// read-only queries against this agent's own local state; there is no
// broader admin surface here.
func NewDebugHandler(a *Agent, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{token},
		})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		if conn.Subprotocol() != token {
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}

		a.serveDebugConn(r.Context(), conn)
	}
}

func (a *Agent) serveDebugConn(ctx context.Context, conn *websocket.Conn) {
	for {
		var q debugQuery
		if err := readJSON(ctx, conn, &q); err != nil {
			return
		}

		resp := a.answerDebugQuery(q)
		if err := writeJSON(ctx, conn, resp); err != nil {
			return
		}
	}
}

func (a *Agent) answerDebugQuery(q debugQuery) any {
	switch q.Kind {
	case debugKindGetConnections:
		var conns []model.Connection
		a.cache.RangeConnections(func(c model.Connection) bool {
			conns = append(conns, c)
			return true
		})
		return conns
	case debugKindGetNodes:
		return []model.Node{a.Node()}
	case debugKindGetConnInfo:
		conn, ok := a.cache.GetConnection(q.ID)
		if !ok {
			return map[string]string{"error": "not found"}
		}
		return conn
	case debugKindGetUsers:
		users := make([]string, 0, a.cache.ConnectionCount())
		a.cache.RangeConnections(func(c model.Connection) bool {
			users = append(users, account(c.ID))
			return true
		})
		return users
	default:
		return map[string]string{"error": "unknown kind"}
	}
}

const debugQueryTimeout = 5 * time.Second

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, debugQueryTimeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, debugQueryTimeout)
	defer cancel()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
