package sse

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/logger"
)

// Publisher adapts the hub to the pipeline's event contract. It formats
// each event as an SSE frame and never blocks the caller.
type Publisher struct {
	hub *Hub
	log *logger.Logger
}

// NewPublisher creates a publisher over the hub.
func NewPublisher(hub *Hub, log *logger.Logger) *Publisher {
	return &Publisher{hub: hub, log: log.WithComponent("sse")}
}

// Publish marshals the payload and broadcasts it to the interview's
// subscribers as `event: <name>\ndata: <json>`.
func (p *Publisher) Publish(interviewID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("event payload marshal failed", logger.Fields("event", event, "error", err.Error()))
		return
	}
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
	p.hub.Broadcast(interviewID, []byte(frame))
}
