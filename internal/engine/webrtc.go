package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/config"
)

// WebRTCEngine is the pion-backed media engine. One router is held per
// room; routers are created lazily and removed when closed.
type WebRTCEngine struct {
	conf *config.WebRTCConfig

	mu      sync.Mutex
	routers map[string]*router
}

func NewWebRTCEngine(conf *config.WebRTCConfig) *WebRTCEngine {
	return &WebRTCEngine{
		conf:    conf,
		routers: make(map[string]*router),
	}
}

func (e *WebRTCEngine) GetOrCreateRouter(roomID string) (Router, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.routers[roomID]; ok {
		return r, nil
	}

	r := newRouter(roomID, e.conf)
	r.onClose = func() {
		e.mu.Lock()
		delete(e.routers, roomID)
		e.mu.Unlock()
	}
	e.routers[roomID] = r

	log.Debug().Str("service", "engine").Str("roomID", roomID).Str("routerID", r.id).Msg("router created")

	return r, nil
}

type router struct {
	id     string
	roomID string
	conf   *config.WebRTCConfig
	caps   RTPCapabilities

	mu         sync.Mutex
	transports map[string]*transport
	producers  map[string]*producer
	closed     bool

	onClose func()
}

func newRouter(roomID string, conf *config.WebRTCConfig) *router {
	return &router{
		id:         uuid.NewString(),
		roomID:     roomID,
		conf:       conf,
		caps:       RTPCapabilities{Codecs: audioCodecs()},
		transports: make(map[string]*transport),
		producers:  make(map[string]*producer),
	}
}

func (r *router) ID() string {
	return r.id
}

func (r *router) Capabilities() RTPCapabilities {
	return r.caps
}

func (r *router) CreateTransport() (Transport, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRouterClosed
	}
	r.mu.Unlock()

	t, err := newTransport(r)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.transports[t.id] = t
	r.mu.Unlock()

	return t, nil
}

func (r *router) CanConsume(producerID string, caps RTPCapabilities) bool {
	r.mu.Lock()
	p, ok := r.producers[producerID]
	r.mu.Unlock()

	if !ok {
		return false
	}

	return caps.Supports(p.params.MimeType)
}

func (r *router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	transports := make([]*transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}

	if r.onClose != nil {
		r.onClose()
	}

	log.Debug().Str("service", "engine").Str("roomID", r.roomID).Str("routerID", r.id).Msg("router closed")
}

func (r *router) addProducer(p *producer) {
	r.mu.Lock()
	r.producers[p.id] = p
	r.mu.Unlock()
}

func (r *router) removeProducer(id string) {
	r.mu.Lock()
	delete(r.producers, id)
	r.mu.Unlock()
}

func (r *router) findProducer(id string) (*producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.producers[id]
	return p, ok
}

func (r *router) removeTransport(id string) {
	r.mu.Lock()
	delete(r.transports, id)
	r.mu.Unlock()
}
