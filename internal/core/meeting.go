package core

import "time"

type MeetingStatus string

const (
	MeetingUpcoming MeetingStatus = "upcoming"
	MeetingLive     MeetingStatus = "live"
	MeetingEnded    MeetingStatus = "ended"
)

// Meeting is the durable record of a seminar, owned by the external
// CRUD service. The coordinator only reads it at room creation and
// mirrors a few fields back best-effort.
type Meeting struct {
	ID            RoomID        `json:"id" db:"id"`
	Title         string        `json:"title" db:"title"`
	Description   string        `json:"description,omitempty" db:"description"`
	StreamVideoID string        `json:"streamVideoId,omitempty" db:"stream_video_id"`
	HostID        string        `json:"hostId" db:"host_id"`
	Status        MeetingStatus `json:"status" db:"status"`
	ScheduledAt   time.Time     `json:"scheduledAt" db:"scheduled_at"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`

	CoHosts    []string        `json:"coHosts" db:"-"`
	Broadcasts []ChatBroadcast `json:"broadcasts" db:"-"`
}

// IsCoHost reports whether the given persistent user id is in the
// meeting's durable co-host list.
func (m *Meeting) IsCoHost(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range m.CoHosts {
		if id == userID {
			return true
		}
	}
	return false
}

// ChatBroadcast is one message of a room's append-only broadcast log.
type ChatBroadcast struct {
	Name      string    `json:"name" db:"sender_name"`
	Message   string    `json:"message" db:"message"`
	Timestamp time.Time `json:"timestamp" db:"sent_at"`
}
