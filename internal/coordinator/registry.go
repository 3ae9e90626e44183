package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
	"github.com/lumilive/seminar/internal/telemetry"
)

// Registry is the process-wide room map. Creation is single-flight: two
// near-simultaneous first joins for the same room id get the same Room
// and the engine is asked for exactly one router.
type Registry struct {
	store  core.MeetingsDBStorer
	engine engine.Engine

	mu    sync.Mutex
	rooms map[core.RoomID]*roomEntry
}

type roomEntry struct {
	room *Room
	// closed once seeding (store read + router request) has finished
	ready chan struct{}
}

func NewRegistry(store core.MeetingsDBStorer, eng engine.Engine) *Registry {
	return &Registry{
		store:  store,
		engine: eng,
		rooms:  make(map[core.RoomID]*roomEntry),
	}
}

// GetOrCreate returns the room, creating and seeding it when absent.
// Callers racing the creation block until the first caller's seeding
// completes.
func (r *Registry) GetOrCreate(id core.RoomID) *Room {
	r.mu.Lock()
	if entry, ok := r.rooms[id]; ok {
		r.mu.Unlock()
		<-entry.ready
		return entry.room
	}

	entry := &roomEntry{
		room:  newRoom(id),
		ready: make(chan struct{}),
	}
	r.rooms[id] = entry
	r.mu.Unlock()

	r.seed(entry.room)
	close(entry.ready)

	telemetry.RoomOpened()
	log.Info().Str("service", "coordinator").Str("roomID", string(id)).Msg("room created")

	return entry.room
}

// Get returns an existing room or core.ErrNotFound.
func (r *Registry) Get(id core.RoomID) (*Room, error) {
	r.mu.Lock()
	entry, ok := r.rooms[id]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	<-entry.ready

	return entry.room, nil
}

// Remove drops the room from the registry and releases its resources.
// No-op for unknown ids.
func (r *Registry) Remove(id core.RoomID) {
	r.mu.Lock()
	entry, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	<-entry.ready
	entry.room.close()

	telemetry.RoomClosed()
	log.Info().Str("service", "coordinator").Str("roomID", string(id)).Msg("room removed")
}

// Rooms snapshots all live rooms, used for disconnect sweeps.
func (r *Registry) Rooms() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]*Room, 0, len(r.rooms))
	for _, entry := range r.rooms {
		select {
		case <-entry.ready:
			rooms = append(rooms, entry.room)
		default:
			// still seeding, nobody has joined it yet
		}
	}
	return rooms
}

// seed populates a fresh room from the durable meeting record and
// requests its router. Both are best-effort: a room with no durable
// record starts with an empty history, a room with no router rejects
// media operations until one exists.
func (r *Registry) seed(room *Room) {
	meeting, err := r.store.FindMeeting(room.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(room.ID)).Msg("fetch meeting record")
	}

	router, err := r.engine.GetOrCreateRouter(string(room.ID))
	if err != nil {
		log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(room.ID)).Msg("request router")
	}

	room.mu.Lock()
	room.meeting = meeting
	if meeting != nil {
		room.broadcasts = append(room.broadcasts, meeting.Broadcasts...)
	}
	room.router = router
	room.mu.Unlock()
}
