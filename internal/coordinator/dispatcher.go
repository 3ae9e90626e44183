package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
	"github.com/lumilive/seminar/internal/eventbus"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
	"github.com/lumilive/seminar/internal/telemetry"
)

const defaultPollTick = time.Second

// Options configures a Dispatcher.
type Options struct {
	Store  core.MeetingsDBStorer
	Engine engine.Engine
	Bus    eventbus.Publisher

	// PollTick overrides the poll countdown interval. Zero means one
	// second, the production cadence.
	PollTick time.Duration
}

// Dispatcher executes inbound frames against room state. It is the only
// writer of room state; the websocket layer parses frames and hands
// them here together with the connection identity.
type Dispatcher struct {
	registry *Registry
	store    core.MeetingsDBStorer
	engine   engine.Engine
	bus      eventbus.Publisher
	tick     time.Duration

	onJoined func(core.ConnectionID, core.RoomID)
	onKicked func(core.ConnectionID, core.RoomID)
}

func NewDispatcher(opts Options) *Dispatcher {
	tick := opts.PollTick
	if tick == 0 {
		tick = defaultPollTick
	}

	return &Dispatcher{
		registry: NewRegistry(opts.Store, opts.Engine),
		store:    opts.Store,
		engine:   opts.Engine,
		bus:      opts.Bus,
		tick:     tick,
	}
}

// Registry exposes the room registry, read-only use only.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// OnJoined registers the hook fired after a connection entered a room,
// before any room fan-out for that join. The websocket layer uses it to
// subscribe the connection to the room channel.
func (d *Dispatcher) OnJoined(fn func(core.ConnectionID, core.RoomID)) {
	d.onJoined = fn
}

// OnKicked registers the hook fired after a connection was removed from
// a room by a host action.
func (d *Dispatcher) OnKicked(fn func(core.ConnectionID, core.RoomID)) {
	d.onKicked = fn
}

// Handle routes one parsed frame to its handler. Ack-style requests get
// a response frame echoing the request id; failures of requests
// carrying an id are answered with an error frame, failures of
// fire-and-forget frames are logged only.
func (d *Dispatcher) Handle(connID core.ConnectionID, userID string, request rpc.Rpc) {
	var err error
	id := requestID(request)

	switch req := request.(type) {
	case *rpc.JoinRoomRpc:
		err = d.JoinRoom(connID, userID, req.Params)
	case *rpc.ToggleHandRpc:
		err = d.ToggleHand(connID, req.Params.RoomID)
	case *rpc.HostActionRpc:
		err = d.HostAction(connID, req.Params)
	case *rpc.CreatePollRpc:
		err = d.CreatePoll(connID, req.Params)
	case *rpc.VotePollRpc:
		err = d.VotePoll(connID, req.Params)
	case *rpc.ChatMessageRpc:
		err = d.PostBroadcast(connID, req.Params)
	case *rpc.UpdateVideoRpc:
		err = d.UpdateVideo(connID, req.Params)
	case *rpc.RouterCapabilitiesRpc:
		var caps engine.RTPCapabilities
		if caps, err = d.RouterCapabilities(req.Params.RoomID); err == nil {
			d.respond(connID, id, rpc.RouterCapabilitiesMethod, caps)
		}
	case *rpc.CreateTransportRpc:
		var params engine.TransportParams
		if params, err = d.CreateTransport(connID, req.Params.RoomID); err == nil {
			d.respond(connID, id, rpc.CreateTransportMethod, params)
		}
	case *rpc.TransportConnectRpc:
		err = d.ConnectTransport(connID, req.Params)
	case *rpc.TransportProduceRpc:
		var producerID string
		if producerID, err = d.Produce(connID, req.Params); err == nil {
			d.respond(connID, id, rpc.TransportProduceMethod, rpc.ProducerCreatedParams{ID: producerID})
		}
	case *rpc.ConsumeRpc:
		var params rpc.ConsumerCreatedParams
		if params, err = d.Consume(connID, req.Params); err == nil {
			d.respond(connID, id, rpc.ConsumeMethod, params)
		}
	case *rpc.ConsumerResumeRpc:
		err = d.ResumeConsumer(connID, req.Params)
	default:
		err = fmt.Errorf("method %s: %w", request.GetMethod(), rpc.ErrUnknownRpcType)
	}

	if err == nil {
		telemetry.ServiceOperationCounter.WithLabelValues(string(request.GetMethod()), "success", "").Add(1)
		return
	}
	telemetry.ServiceOperationCounter.WithLabelValues(string(request.GetMethod()), "error", core.ErrorCode(err)).Add(1)

	log.Error().Err(err).
		Str("service", "coordinator").
		Str("connID", string(connID)).
		Str("method", string(request.GetMethod())).
		Msg("handle rpc")

	if id != nil {
		d.publishClient(connID, rpc.NewErrorEvent(id, core.ErrorCode(err), err.Error()))
	}
}

// JoinRoom puts the connection into the room's roster. The effective
// role is forced to co-host when the user is on the meeting's durable
// co-host list and did not claim host; moderators may produce audio
// immediately, everyone else waits for a grant.
func (d *Dispatcher) JoinRoom(connID core.ConnectionID, userID string, p rpc.JoinRoomParams) error {
	if userID == "" {
		userID = p.UserID
	}

	// a connection lives in one room at a time; joining a new room
	// detaches it from the previous one before the new roster fans out
	d.leaveRooms(connID, p.RoomID)

	room := d.registry.GetOrCreate(p.RoomID)

	role := p.Role
	if role == "" {
		role = core.RoleUser
	}
	if role != core.RoleHost && userID != "" && room.isPersistedCoHost(userID) {
		role = core.RoleCoHost
	}

	added := room.upsertParticipant(&core.Participant{
		ID:              connID,
		UserID:          userID,
		Name:            p.Name,
		Role:            role,
		CanProduceAudio: role.IsModerator(),
	})
	if added {
		telemetry.ParticipantJoined()
	}

	// the websocket layer subscribes the connection to the room channel
	// here, so the roster fan-out below reaches the joiner too
	if d.onJoined != nil {
		d.onJoined(connID, room.ID)
	}

	d.publishClient(connID, rpc.NewEvent(rpc.ChatHistoryMethod, room.History()))
	if snapshot, ok := room.ActivePoll(); ok {
		d.publishClient(connID, rpc.NewEvent(rpc.PollUpdateMethod, snapshot))
	}
	d.publishRoom(room.ID, rpc.NewEvent(rpc.UpdateUsersMethod, room.Roster()))

	log.Info().Str("service", "coordinator").
		Str("roomID", string(room.ID)).
		Str("connID", string(connID)).
		Str("role", string(role)).
		Msg("participant joined")

	return nil
}

// ToggleHand flips the caller's raised-hand flag and fans out the
// roster.
func (d *Dispatcher) ToggleHand(connID core.ConnectionID, roomID core.RoomID) error {
	room, err := d.registry.Get(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	p, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	p.IsHandRaised = !p.IsHandRaised
	roster := room.rosterLocked()
	room.mu.Unlock()

	d.publishRoom(roomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))
	return nil
}

// HostAction applies a moderation action to a target participant. The
// permission matrix decides; state changes and fan-out happen only
// after it allowed the action.
func (d *Dispatcher) HostAction(connID core.ConnectionID, p rpc.HostActionParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	actor, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("actor %s: %w", connID, core.ErrNotFound)
	}
	target, ok := room.findParticipantLocked(p.TargetID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("target %s: %w", p.TargetID, core.ErrNotFound)
	}
	if !CanModerate(actor.Role, target.Role, p.Action) {
		room.mu.Unlock()
		return fmt.Errorf("%s by %s on %s: %w", p.Action, actor.Role, target.Role, core.ErrPermissionDenied)
	}

	targetUserID := target.UserID

	switch p.Action {
	case core.ActionKick:
		for i, participant := range room.participants {
			if participant.ID == p.TargetID {
				room.participants = append(room.participants[:i], room.participants[i+1:]...)
				break
			}
		}
		roster := room.rosterLocked()
		room.mu.Unlock()

		telemetry.ParticipantLeft()
		d.publishClient(p.TargetID, rpc.NewEvent(rpc.KickedMethod, nil))
		if d.onKicked != nil {
			d.onKicked(p.TargetID, p.RoomID)
		}
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

	case core.ActionMute:
		room.mu.Unlock()
		d.publishClient(p.TargetID, rpc.NewEvent(rpc.MutedByHostMethod, nil))

	case core.ActionLowerHand:
		target.IsHandRaised = false
		roster := room.rosterLocked()
		room.mu.Unlock()
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

	case core.ActionGrantAudio:
		target.CanProduceAudio = true
		roster := room.rosterLocked()
		room.mu.Unlock()
		d.publishClient(p.TargetID, rpc.NewEvent(rpc.AudioPermissionMethod, rpc.AudioPermissionParams{CanProduce: true}))
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

	case core.ActionRevokeAudio:
		target.CanProduceAudio = false
		roster := room.rosterLocked()
		room.mu.Unlock()
		d.publishClient(p.TargetID, rpc.NewEvent(rpc.AudioPermissionMethod, rpc.AudioPermissionParams{CanProduce: false}))
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

	case core.ActionPromoteToCoHost:
		target.Role = core.RoleCoHost
		target.CanProduceAudio = true
		roster := room.rosterLocked()
		room.mu.Unlock()

		d.publishClient(p.TargetID, rpc.NewEvent(rpc.RoleUpdateMethod, rpc.RoleUpdateParams{Role: core.RoleCoHost}))
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

		if targetUserID != "" {
			if err := d.store.AddCoHost(p.RoomID, targetUserID); err != nil {
				log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(p.RoomID)).Str("userID", targetUserID).Msg("persist co-host grant")
			}
		}

	case core.ActionDemoteToUser:
		target.Role = core.RoleUser
		target.CanProduceAudio = false
		roster := room.rosterLocked()
		room.mu.Unlock()

		d.publishClient(p.TargetID, rpc.NewEvent(rpc.RoleUpdateMethod, rpc.RoleUpdateParams{Role: core.RoleUser}))
		d.publishRoom(p.RoomID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))

		if targetUserID != "" {
			if err := d.store.RemoveCoHost(p.RoomID, targetUserID); err != nil {
				log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(p.RoomID)).Str("userID", targetUserID).Msg("persist co-host revoke")
			}
		}

	default:
		room.mu.Unlock()
		return fmt.Errorf("action %s: %w", p.Action, core.ErrPermissionDenied)
	}

	return nil
}

// CreatePoll opens a poll and starts its countdown. An already-open
// poll is superseded: its task is cancelled and it never emits
// poll-end.
func (d *Dispatcher) CreatePoll(connID core.ConnectionID, p rpc.CreatePollParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	actor, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	if !CanCreatePoll(actor.Role) {
		room.mu.Unlock()
		return fmt.Errorf("create poll as %s: %w", actor.Role, core.ErrPermissionDenied)
	}

	superseded := room.activePoll
	np := newPoll(uuid.NewString(), p.Question, p.Options, p.Duration)
	room.activePoll = np
	snapshot := np.snapshotLocked()
	room.mu.Unlock()

	if superseded != nil {
		superseded.cancel()
	}

	d.publishRoom(p.RoomID, rpc.NewEvent(rpc.PollUpdateMethod, snapshot))
	go d.runPollTimer(room, np)

	return nil
}

// VotePoll counts one vote. Votes on a closed or absent poll, or with
// an out-of-range option index, are dropped without an error.
func (d *Dispatcher) VotePoll(connID core.ConnectionID, p rpc.VotePollParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return nil
	}

	room.mu.Lock()
	active := room.activePoll
	if active == nil || !active.IsActive || p.OptionIndex < 0 || p.OptionIndex >= len(active.Options) {
		room.mu.Unlock()
		return nil
	}
	active.Options[p.OptionIndex].Votes++
	snapshot := active.snapshotLocked()
	room.mu.Unlock()

	d.publishRoom(p.RoomID, rpc.NewEvent(rpc.PollUpdateMethod, snapshot))
	return nil
}

// PostBroadcast appends a moderator chat message to the room history,
// fans it out, and persists it best-effort.
func (d *Dispatcher) PostBroadcast(connID core.ConnectionID, p rpc.ChatMessageParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	sender, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	if !CanBroadcast(sender.Role) {
		room.mu.Unlock()
		return fmt.Errorf("broadcast as %s: %w", sender.Role, core.ErrPermissionDenied)
	}

	name := p.Name
	if name == "" {
		name = sender.Name
	}
	broadcast := core.ChatBroadcast{
		Name:      name,
		Message:   p.Message,
		Timestamp: time.Now().UTC(),
	}
	room.broadcasts = append(room.broadcasts, broadcast)
	room.mu.Unlock()

	d.publishRoom(p.RoomID, rpc.NewEvent(rpc.ChatBroadcastMethod, broadcast))

	if err := d.store.AppendBroadcast(p.RoomID, broadcast); err != nil {
		log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(p.RoomID)).Msg("persist broadcast")
	}

	return nil
}

// UpdateVideo changes the room's stream source and announces it.
func (d *Dispatcher) UpdateVideo(connID core.ConnectionID, p rpc.UpdateVideoParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	actor, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	if !CanBroadcast(actor.Role) {
		room.mu.Unlock()
		return fmt.Errorf("update video as %s: %w", actor.Role, core.ErrPermissionDenied)
	}
	if room.meeting != nil {
		room.meeting.StreamVideoID = p.VideoID
	}
	room.mu.Unlock()

	d.publishRoom(p.RoomID, rpc.NewEvent(rpc.VideoUpdateMethod, rpc.VideoUpdateParams{VideoID: p.VideoID}))

	if err := d.store.UpdateStreamSource(p.RoomID, p.VideoID); err != nil {
		log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(p.RoomID)).Msg("persist stream source")
	}

	return nil
}

// Disconnect removes the connection from every room it is in, closes
// the transports it owns and evicts rooms whose roster emptied.
func (d *Dispatcher) Disconnect(connID core.ConnectionID) {
	d.leaveRooms(connID, "")
}

// leaveRooms removes the connection from every room except the one
// named, tearing down its transports and fanning out the shrunken
// rosters. Rooms left empty are evicted.
func (d *Dispatcher) leaveRooms(connID core.ConnectionID, except core.RoomID) {
	for _, room := range d.registry.Rooms() {
		if room.ID == except {
			continue
		}
		if !room.removeParticipant(connID) {
			continue
		}
		telemetry.ParticipantLeft()

		// closing the transports tears down their producers and
		// consumers via the registered close callbacks
		for _, transport := range room.transportsOwnedBy(connID) {
			transport.Close()
		}

		roster := room.Roster()
		if len(roster) == 0 {
			d.registry.Remove(room.ID)
			continue
		}
		d.publishRoom(room.ID, rpc.NewEvent(rpc.UpdateUsersMethod, roster))
	}
}

func (d *Dispatcher) respond(connID core.ConnectionID, id *int64, method rpc.Method, params interface{}) {
	if id != nil {
		d.publishClient(connID, rpc.NewAck(*id, method, params))
		return
	}
	d.publishClient(connID, rpc.NewEvent(method, params))
}

func (d *Dispatcher) publishClient(connID core.ConnectionID, event rpc.Rpc) {
	if err := d.bus.PublishClient(connID, event); err != nil {
		log.Error().Err(err).Str("service", "coordinator").Str("connID", string(connID)).Str("method", string(event.GetMethod())).Msg("publish client event")
	}
}

func (d *Dispatcher) publishRoom(roomID core.RoomID, event rpc.Rpc) {
	if err := d.bus.PublishRoom(roomID, event); err != nil {
		log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(roomID)).Str("method", string(event.GetMethod())).Msg("publish room event")
	}
}

func requestID(request rpc.Rpc) *int64 {
	type identified interface {
		GetID() *int64
	}
	if req, ok := request.(identified); ok {
		return req.GetID()
	}
	return nil
}
