// Package events carries run progress to operator clients (SSE).
package events

import (
	"encoding/json"
	"time"
)

const (
	RunStarted     = "run.started"
	RunFinished    = "run.finished"
	PostingSkipped = "posting.skipped"
	PostingDecided = "posting.decided"
	PostingOutcome = "posting.outcome"
	Cooldown       = "run.cooldown"
	Ping           = "ping"
)

type Event struct {
	// Seq is assigned by the Hub; zero until published.
	Seq     int64           `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// New builds a version 1 event. Data that cannot be marshalled is dropped.
func New(runID, typ string, data any) Event {
	e := Event{Type: typ, Version: 1, At: time.Now().UTC(), RunID: runID}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	return e
}

func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Publisher is the send side of a Hub.
type Publisher interface {
	Publish(e Event)
}

// Emit publishes an event; a nil Publisher drops it.
func Emit(p Publisher, runID, typ string, data any) {
	if p == nil {
		return
	}
	p.Publish(New(runID, typ, data))
}

// Outcome is the payload of PostingOutcome events.
type Outcome struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Score   *int   `json:"score,omitempty"`
	Price   *int   `json:"price,omitempty"`
	State   string `json:"state,omitempty"`
	Outcome string `json:"outcome"`
}
