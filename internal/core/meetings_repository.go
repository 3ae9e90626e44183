package core

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MeetingsDBStorer is the coordinator's view of the external CRUD
// service's storage. All writes are best-effort from the real-time
// path: a failure is logged by the caller and never blocks delivery.
type MeetingsDBStorer interface {
	FindMeeting(id RoomID) (*Meeting, error)
	AppendBroadcast(id RoomID, b ChatBroadcast) error
	AddCoHost(id RoomID, userID string) error
	RemoveCoHost(id RoomID, userID string) error
	UpdateStreamSource(id RoomID, videoID string) error
	SavePollResult(id RoomID, poll *Poll) error
}

type MeetingsRepository struct {
	db *sqlx.DB
}

func NewMeetingsRepository(db *sqlx.DB) *MeetingsRepository {
	return &MeetingsRepository{
		db: db,
	}
}

func (r *MeetingsRepository) FindMeeting(id RoomID) (*Meeting, error) {
	meeting := &Meeting{}

	err := r.db.Get(meeting,
		`SELECT id, title, description, stream_video_id, host_id, status, scheduled_at, created_at
		FROM meetings WHERE id = $1 LIMIT 1`,
		id,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find meeting: %v: %w", err, ErrPersistence)
	}

	err = r.db.Select(&meeting.CoHosts,
		`SELECT user_id FROM meeting_co_hosts WHERE meeting_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load co-hosts: %v: %w", err, ErrPersistence)
	}

	err = r.db.Select(&meeting.Broadcasts,
		`SELECT sender_name, message, sent_at
		FROM meeting_broadcasts WHERE meeting_id = $1 ORDER BY sent_at ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load broadcasts: %v: %w", err, ErrPersistence)
	}

	return meeting, nil
}

func (r *MeetingsRepository) AppendBroadcast(id RoomID, b ChatBroadcast) error {
	_, err := r.db.Exec(
		`INSERT INTO meeting_broadcasts (meeting_id, sender_name, message, sent_at) VALUES ($1, $2, $3, $4)`,
		id,
		b.Name,
		b.Message,
		b.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append broadcast: %v: %w", err, ErrPersistence)
	}

	return nil
}

func (r *MeetingsRepository) AddCoHost(id RoomID, userID string) error {
	_, err := r.db.Exec(
		`INSERT INTO meeting_co_hosts (meeting_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("add co-host: %v: %w", err, ErrPersistence)
	}

	return nil
}

func (r *MeetingsRepository) RemoveCoHost(id RoomID, userID string) error {
	_, err := r.db.Exec(
		`DELETE FROM meeting_co_hosts WHERE meeting_id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("remove co-host: %v: %w", err, ErrPersistence)
	}

	return nil
}

func (r *MeetingsRepository) UpdateStreamSource(id RoomID, videoID string) error {
	_, err := r.db.Exec(
		`UPDATE meetings SET stream_video_id = $2 WHERE id = $1`,
		id,
		videoID,
	)
	if err != nil {
		return fmt.Errorf("update stream source: %v: %w", err, ErrPersistence)
	}

	return nil
}

// SavePollResult archives the final state of a closed poll.
func (r *MeetingsRepository) SavePollResult(id RoomID, poll *Poll) error {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("marshal poll options: %v: %w", err, ErrPersistence)
	}

	_, err = r.db.Exec(
		`INSERT INTO meeting_polls (id, meeting_id, question, options, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		poll.ID,
		id,
		poll.Question,
		options,
	)
	if err != nil {
		return fmt.Errorf("save poll result: %v: %w", err, ErrPersistence)
	}

	return nil
}
