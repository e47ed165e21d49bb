package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
)

// Stream message types sent over /ws.
const (
	MessageAttemptStarted  = "attempt_started"
	MessageAttemptFinished = "attempt_finished"
	MessageResult          = "result"
	MessageError           = "error"
)

const wsWriteWait = 10 * time.Second

// StreamMessage is one frame of the /ws progress stream.
type StreamMessage struct {
	Type        string             `json:"type"`
	RunID       string             `json:"run_id,omitempty"`
	Attempt     int                `json:"attempt,omitempty"`
	MaxAttempts int                `json:"max_attempts,omitempty"`
	Requested   int                `json:"requested,omitempty"`
	Received    int                `json:"received,omitempty"`
	State       string             `json:"state,omitempty"`
	Result      *generation.Result `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	Kind        string             `json:"kind,omitempty"`
}

// streamObserver forwards attempt events to one websocket connection. The
// run executes on the handler goroutine, so writes never overlap.
type streamObserver struct {
	conn   *websocket.Conn
	failed bool
}

func (o *streamObserver) send(m StreamMessage) {
	if o.failed {
		return
	}
	_ = o.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := o.conn.WriteJSON(m); err != nil {
		o.failed = true
	}
}

func (o *streamObserver) AttemptStarted(e application.AttemptEvent) {
	o.send(StreamMessage{
		Type:        MessageAttemptStarted,
		RunID:       e.RunID,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		Requested:   e.Requested,
	})
}

func (o *streamObserver) AttemptFinished(e application.AttemptEvent) {
	m := StreamMessage{
		Type:        MessageAttemptFinished,
		RunID:       e.RunID,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		Requested:   e.Requested,
		Received:    e.Received,
		State:       e.State,
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
		m.Kind = string(application.ClassifyError(e.Err))
	}
	o.send(m)
}

func (o *streamObserver) RunFinished(*generation.Result, error) {}

// handleWebSocket reads one GenerateRequest, streams attempt progress and
// finishes with a result or error frame before closing.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck // best-effort close

	obs := &streamObserver{conn: conn}

	var body GenerateRequest
	if err := conn.ReadJSON(&body); err != nil {
		obs.send(StreamMessage{Type: MessageError, Error: "invalid request: " + err.Error(), Kind: string(application.KindRequest)})
		return
	}

	// Cancel the run when the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	res, err := s.gen.GenerateObserved(ctx, body.toDomain(), obs)
	if err != nil {
		obs.send(StreamMessage{Type: MessageError, Error: err.Error(), Kind: string(application.ClassifyError(err))})
	} else {
		obs.send(StreamMessage{Type: MessageResult, RunID: res.RunID, Result: res})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
