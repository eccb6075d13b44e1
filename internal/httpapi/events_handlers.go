package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bidbot-engine/internal/events"
)

const keepAliveEvery = 30 * time.Second

type EventsHandler struct {
	Hub *events.Hub
}

func writeSSE(w io.Writer, e events.Event) {
	if e.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", e.Seq)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.JSON())
}

// ServeSSE streams run events. A reconnecting client sends Last-Event-ID
// and first receives whatever the hub still holds after that id.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	after, _ := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	ch, backlog := h.Hub.Subscribe(after)
	defer h.Hub.Unsubscribe(ch)

	writeSSE(w, events.New("", events.Ping, map[string]string{"request_id": RequestIDFrom(r.Context())}))
	for _, e := range backlog {
		writeSSE(w, e)
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, e)
			flusher.Flush()
		}
	}
}
