package coordinator

import (
	"sync"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
)

// Room is one live seminar session. All fields behind mu are mutated by
// the dispatcher only; engine and store calls never happen while mu is
// held.
type Room struct {
	ID core.RoomID

	mu           sync.Mutex
	meeting      *core.Meeting
	participants []*core.Participant
	activePoll   *poll
	broadcasts   []core.ChatBroadcast
	router       engine.Router

	// media registries, keyed by engine-issued ids. Entries are removed
	// in the close-notification callbacks only.
	transports map[string]transportEntry
	producers  map[string]producerEntry
	consumers  map[string]consumerEntry
}

type transportEntry struct {
	transport engine.Transport
	owner     core.ConnectionID
}

type producerEntry struct {
	producer engine.Producer
	owner    core.ConnectionID
}

type consumerEntry struct {
	consumer engine.Consumer
	owner    core.ConnectionID
}

func newRoom(id core.RoomID) *Room {
	return &Room{
		ID:         id,
		transports: make(map[string]transportEntry),
		producers:  make(map[string]producerEntry),
		consumers:  make(map[string]consumerEntry),
	}
}

// upsertParticipant adds the participant and reports true, or, when
// the connection id is already present, updates name and role in place
// and reports false. An audio grant held by the existing participant
// survives the rejoin.
func (r *Room) upsertParticipant(p *core.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.participants {
		if existing.ID == p.ID {
			existing.Name = p.Name
			existing.Role = p.Role
			if p.CanProduceAudio {
				existing.CanProduceAudio = true
			}
			return false
		}
	}

	r.participants = append(r.participants, p)
	return true
}

func (r *Room) findParticipant(id core.ConnectionID) (*core.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findParticipantLocked(id)
}

func (r *Room) findParticipantLocked(id core.ConnectionID) (*core.Participant, bool) {
	for _, p := range r.participants {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) removeParticipant(id core.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.participants {
		if p.ID == id {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return true
		}
	}
	return false
}

// Roster returns a snapshot of the current participants.
func (r *Room) Roster() []core.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rosterLocked()
}

func (r *Room) rosterLocked() []core.Participant {
	roster := make([]core.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, *p)
	}
	return roster
}

// Router returns the room's router handle, nil while the engine has
// not delivered one.
func (r *Room) Router() engine.Router {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.router
}

// ActivePoll snapshots the currently open poll, if any.
func (r *Room) ActivePoll() (core.Poll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activePoll == nil {
		return core.Poll{}, false
	}
	return r.activePoll.snapshotLocked(), true
}

// isPersistedCoHost reports whether the user id is in the durable
// co-host list of the room's meeting record.
func (r *Room) isPersistedCoHost(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.meeting != nil && r.meeting.IsCoHost(userID)
}

// History returns the room's in-memory broadcast log.
func (r *Room) History() []core.ChatBroadcast {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]core.ChatBroadcast, len(r.broadcasts))
	copy(history, r.broadcasts)
	return history
}

func (r *Room) findTransport(id string) (engine.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.transports[id]
	return entry.transport, ok
}

func (r *Room) removeTransport(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.transports, id)
}

func (r *Room) removeProducer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.producers, id)
}

func (r *Room) findConsumer(id string) (engine.Consumer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.consumers[id]
	return entry.consumer, ok
}

func (r *Room) removeConsumer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.consumers, id)
}

// transportsOwnedBy returns the transports created by the given
// connection, for teardown on disconnect.
func (r *Room) transportsOwnedBy(id core.ConnectionID) []engine.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := []engine.Transport{}
	for _, entry := range r.transports {
		if entry.owner == id {
			owned = append(owned, entry.transport)
		}
	}
	return owned
}

// close releases everything the room owns. Called by the registry once
// the room has been removed from it.
func (r *Room) close() {
	r.mu.Lock()
	if r.activePoll != nil {
		r.activePoll.cancel()
		r.activePoll = nil
	}
	router := r.router
	r.mu.Unlock()

	// closing the router closes its transports, which in turn fires
	// the registered close callbacks and empties the registries
	if router != nil {
		router.Close()
	}
}
