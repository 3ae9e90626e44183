package engine

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

// transport wraps one pion peer connection. Clients drive the offer
// side; Connect answers with a complete (non-trickle) description.
type transport struct {
	id     string
	router *router
	pc     *webrtc.PeerConnection

	mu        sync.Mutex
	producers map[string]*producer
	consumers map[string]*consumer
	// producers created before their remote track arrived, matched in
	// the OnTrack handler by track id, then by kind
	pending []*producer
	closed  bool

	closeOnce sync.Once
	onClose   []func()
}

func newTransport(r *router) (*transport, error) {
	api, err := newPeerConnectionAPI(r.conf, r.conf.Publisher)
	if err != nil {
		return nil, err
	}

	pc, err := api.NewPeerConnection(r.conf.Configuration)
	if err != nil {
		return nil, err
	}

	t := &transport{
		id:        uuid.NewString(),
		router:    r,
		pc:        pc,
		producers: make(map[string]*producer),
		consumers: make(map[string]*consumer),
	}

	pc.OnTrack(t.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("service", "engine").Str("transportID", t.id).Str("state", state.String()).Msg("connection state changed")

		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			t.Close()
		}
	})

	return t, nil
}

func (t *transport) ID() string {
	return t.id
}

func (t *transport) Params() TransportParams {
	return TransportParams{
		ID:         t.id,
		ICEServers: t.router.conf.Configuration.ICEServers,
	}
}

func (t *transport) Connect(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return t.pc.LocalDescription(), nil
}

func (t *transport) Produce(kind string, params RTPParameters) (Producer, error) {
	if kind != KindAudio {
		return nil, ErrUnsupportedKind
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}

	p := newProducer(t, kind, params)
	t.producers[p.id] = p
	t.pending = append(t.pending, p)
	t.mu.Unlock()

	t.router.addProducer(p)

	return p, nil
}

func (t *transport) Consume(producerID string, caps RTPCapabilities) (Consumer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	p, ok := t.router.findProducer(producerID)
	if !ok {
		return nil, ErrProducerNotFound
	}

	c, err := newConsumer(t, p)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.consumers[c.id] = c
	t.mu.Unlock()

	p.attach(c)

	return c, nil
}

// OnClose registers fn to run when the transport closes. The peer
// connection can fail and close the transport at any moment, so a
// registration arriving after the close fires fn right away instead of
// dropping it.
func (t *transport) OnClose(fn func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		fn()
		return
	}
	t.onClose = append(t.onClose, fn)
	t.mu.Unlock()
}

func (t *transport) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		producers := make([]*producer, 0, len(t.producers))
		for _, p := range t.producers {
			producers = append(producers, p)
		}
		consumers := make([]*consumer, 0, len(t.consumers))
		for _, c := range t.consumers {
			consumers = append(consumers, c)
		}
		callbacks := t.onClose
		t.mu.Unlock()

		for _, p := range producers {
			p.transportClosed()
		}
		for _, c := range consumers {
			c.transportClosed()
		}

		t.router.removeTransport(t.id)

		if err := t.pc.Close(); err != nil {
			log.Error().Err(err).Str("service", "engine").Str("transportID", t.id).Msg("close peer connection")
		}

		for _, fn := range callbacks {
			fn()
		}

		log.Debug().Str("service", "engine").Str("transportID", t.id).Msg("transport closed")
	})
}

// handleTrack binds an incoming remote track to the producer that
// announced it: first by track id, falling back to the oldest pending
// producer of the same kind.
func (t *transport) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	log.Debug().Str("service", "engine").Str("transportID", t.id).Str("trackID", track.ID()).Msg("remote track")

	t.mu.Lock()
	var bound *producer
	for i, p := range t.pending {
		if p.params.TrackID == track.ID() {
			bound = p
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	if bound == nil {
		for i, p := range t.pending {
			if strings.EqualFold(p.kind, track.Kind().String()) {
				bound = p
				t.pending = append(t.pending[:i], t.pending[i+1:]...)
				break
			}
		}
	}
	t.mu.Unlock()

	if bound == nil {
		log.Error().Str("service", "engine").Str("transportID", t.id).Str("trackID", track.ID()).Msg("no producer for remote track")
		return
	}

	bound.bind(track)
}

func (t *transport) removeProducer(id string) {
	t.mu.Lock()
	delete(t.producers, id)
	t.mu.Unlock()
}

func (t *transport) removeConsumer(id string) {
	t.mu.Lock()
	delete(t.consumers, id)
	t.mu.Unlock()
}
