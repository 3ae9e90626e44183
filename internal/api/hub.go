package api

import (
	"sync"

	"github.com/isqad/melody"
	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus"
)

// hub tracks live websocket connections and their eventbus
// subscriptions. Every connection pumps its client channel for the
// whole session; the room channel subscription follows roster
// membership and is swapped when the connection joins another room.
type hub struct {
	subscriber eventbus.Subscriber

	mu    sync.Mutex
	conns map[core.ConnectionID]*conn
}

type conn struct {
	session *melody.Session
	client  *eventbus.Subscription
	room    *eventbus.Subscription
}

func newHub(subscriber eventbus.Subscriber) *hub {
	return &hub{
		subscriber: subscriber,
		conns:      make(map[core.ConnectionID]*conn),
	}
}

// register subscribes the connection to its client channel and starts
// the pump feeding frames into the websocket session.
func (h *hub) register(connID core.ConnectionID, session *melody.Session) error {
	subscription, err := h.subscriber.SubscribeClient(connID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[connID] = &conn{session: session, client: subscription}
	h.mu.Unlock()

	go pump(session, subscription)
	return nil
}

// joinRoom subscribes the connection to the room channel. A previous
// room subscription is closed first, which stops its pump.
func (h *hub) joinRoom(connID core.ConnectionID, roomID core.RoomID) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	previous := c.room
	h.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Msg("close previous room subscription")
		}
	}

	subscription, err := h.subscriber.SubscribeRoom(roomID)
	if err != nil {
		log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Str("roomID", string(roomID)).Msg("subscribe room channel")
		return
	}

	h.mu.Lock()
	if c, ok := h.conns[connID]; ok {
		c.room = subscription
		h.mu.Unlock()
		go pump(c.session, subscription)
		return
	}
	h.mu.Unlock()

	// connection dropped while subscribing
	subscription.Close()
}

// leaveRoom closes the connection's room subscription, if any.
func (h *hub) leaveRoom(connID core.ConnectionID) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	var subscription *eventbus.Subscription
	if ok {
		subscription = c.room
		c.room = nil
	}
	h.mu.Unlock()

	if subscription != nil {
		if err := subscription.Close(); err != nil {
			log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Msg("close room subscription")
		}
	}
}

// drop closes all subscriptions of the connection and forgets it.
func (h *hub) drop(connID core.ConnectionID) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.room != nil {
		c.room.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
}

// pump copies frames from a subscription into the websocket session
// until the subscription closes.
func pump(session *melody.Session, subscription *eventbus.Subscription) {
	for msg := range subscription.Channel() {
		if err := session.Write([]byte(msg.Payload)); err != nil {
			// the session is closed, the subscription follows via drop
			log.Debug().Err(err).Str("service", "api").Msg("write to websocket session")
			return
		}
	}
}
