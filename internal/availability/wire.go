package availability

import "github.com/google/uuid"

// Message types on the availability websocket.
const (
	MessageJoin         = "join"
	MessageLeave        = "leave"
	MessageAvailability = "availability"
	MessageError        = "error"
)

// ClientMessage is what a browser or SDK sends to join or leave a tour room.
type ClientMessage struct {
	Type   string    `json:"type"`
	TourID uuid.UUID `json:"tour_id"`
}

// ServerMessage is what the hub pushes.
type ServerMessage struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Message  string    `json:"message,omitempty"`
}
