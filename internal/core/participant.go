package core

// RoomID is the identifier of a live seminar room. It equals the
// persisted meeting id.
type RoomID string

// ConnectionID identifies a single live websocket connection.
type ConnectionID string

// Role determines what a participant may do inside a room
type Role string

const (
	// RoleHost is the seminar owner
	RoleHost Role = "host"
	// RoleCoHost is a moderator granted by the host
	RoleCoHost Role = "co-host"
	// RoleUser is a regular attendee
	RoleUser Role = "user"
)

func (r Role) IsModerator() bool {
	return r == RoleHost || r == RoleCoHost
}

// Participant is one live connection's presence inside a room.
// A user connected from two devices holds two participants.
type Participant struct {
	ID              ConnectionID `json:"id"`
	UserID          string       `json:"userId,omitempty"`
	Name            string       `json:"name"`
	Role            Role         `json:"role"`
	IsHandRaised    bool         `json:"isHandRaised"`
	CanProduceAudio bool         `json:"canProduceAudio"`
}
