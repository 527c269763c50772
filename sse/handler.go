package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/logger"
)

// keepAliveInterval must stay below typical proxy idle timeouts.
const keepAliveInterval = 30 * time.Second

// ServeSSE streams the interview's events to one HTTP client until the
// client disconnects.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, interviewID uuid.UUID, log *logger.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE connections are long-lived; the server's write timeout must
	// not cut them off.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Warn("could not disable write deadline", logger.Fields("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient(uuid.NewString(), interviewID)
	hub.Register(client)
	defer hub.Unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"interview_id\":%q}\n\n", interviewID)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case frame, ok := <-client.Events():
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
