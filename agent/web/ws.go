package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Client to server: {"type":"prompt","text":...} or {"type":"clear"}.
// Server to client: "status" once on connect, then "reply", "cleared" or
// "error", each carrying the current stats.
type wsMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Ready *bool  `json:"ready,omitempty"`
	Stats *Stats `json:"stats,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	b, err := s.sessionFor(w, r, false)
	switch {
	case errors.Is(err, errNoSession):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	sess := b.session

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	// Drop the connection when the server shuts down.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-finished:
		}
	}()

	var writeMu sync.Mutex
	send := func(m wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(m)
	}

	ready := sess.Ready()
	stats := statsOf(sess.Transcript())
	if err := send(wsMessage{Type: "status", Text: sess.Status(), Ready: &ready, Stats: &stats}); err != nil {
		return
	}

	for {
		var in wsMessage
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		s.touch(b)
		if err := send(s.handleWSMessage(r, sess, in)); err != nil {
			s.log.Debug().Err(err).Msg("websocket write")
			return
		}
	}
}

func (s *Server) handleWSMessage(r *http.Request, sess *agent.Session, in wsMessage) wsMessage {
	switch in.Type {
	case "prompt":
		if !sess.Ready() {
			return s.wsError(sess, cannotProceedMessage)
		}
		reply, err := sess.Submit(r.Context(), in.Text)
		if err != nil {
			return s.wsError(sess, submitError(err))
		}
		stats := statsOf(sess.Transcript())
		return wsMessage{Type: "reply", Text: reply, Stats: &stats}
	case "clear":
		sess.Clear()
		stats := statsOf(sess.Transcript())
		return wsMessage{Type: "cleared", Stats: &stats}
	default:
		return s.wsError(sess, "unknown message type '"+in.Type+"'")
	}
}

func (s *Server) wsError(sess *agent.Session, text string) wsMessage {
	stats := statsOf(sess.Transcript())
	return wsMessage{Type: "error", Text: text, Stats: &stats}
}
