// Package sse streams generation activity from every surface as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
)

// Event types.
const (
	TypeAttemptStarted  = "attempt_started"
	TypeAttemptFinished = "attempt_finished"
	TypeRunFinished     = "run_finished"
)

// Event is one SSE frame payload.
type Event struct {
	ID           uint64    `json:"-"`
	Type         string    `json:"type"`
	RunID        string    `json:"run_id,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	MaxAttempts  int       `json:"max_attempts,omitempty"`
	Requested    int       `json:"requested,omitempty"`
	Received     int       `json:"received,omitempty"`
	State        string    `json:"state,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	AttemptsUsed int       `json:"attempts_used,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SSEHandler is an application.Observer that fans run events out to every
// connected client. Slow clients drop events rather than stall a run.
type SSEHandler struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	seq     atomic.Uint64
	now     func() time.Time
}

// NewSSEHandler creates a handler with no clients.
func NewSSEHandler() *SSEHandler {
	return &SSEHandler{
		clients: make(map[chan Event]struct{}),
		now:     time.Now,
	}
}

func (h *SSEHandler) AttemptStarted(e application.AttemptEvent) {
	h.publish(attemptEvent(TypeAttemptStarted, e))
}

func (h *SSEHandler) AttemptFinished(e application.AttemptEvent) {
	h.publish(attemptEvent(TypeAttemptFinished, e))
}

func (h *SSEHandler) RunFinished(res *generation.Result, err error) {
	ev := Event{Type: TypeRunFinished}
	if res != nil {
		ev.RunID = res.RunID
		ev.Requested = res.Requested
		ev.Received = len(res.Records)
		ev.Outcome = string(res.Outcome)
		ev.AttemptsUsed = res.AttemptsUsed
	}
	if err != nil {
		ev.Error = err.Error()
		ev.ErrorKind = string(application.ClassifyError(err))
	}
	h.publish(ev)
}

func attemptEvent(typ string, e application.AttemptEvent) Event {
	ev := Event{
		Type:        typ,
		RunID:       e.RunID,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		Requested:   e.Requested,
		Received:    e.Received,
		State:       e.State,
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
		ev.ErrorKind = string(application.ClassifyError(e.Err))
	}
	return ev
}

func (h *SSEHandler) publish(ev Event) {
	ev.ID = h.seq.Add(1)
	ev.Timestamp = h.now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Drop if client is slow
		}
	}
}

// Clients is the number of connected subscribers.
func (h *SSEHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections. The optional "types" query parameter
// is a comma separated filter.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	typeFilter := make(map[string]bool)
	if types := r.URL.Query().Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			typeFilter[strings.TrimSpace(t)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan Event, 64)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if len(typeFilter) > 0 && !typeFilter[ev.Type] {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
			_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
