package coordinator

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

type stubStore struct {
	mu sync.Mutex

	meeting    *core.Meeting
	findErr    error
	appendErr  error
	broadcasts []core.ChatBroadcast
	coHosts    []string
	videoID    string
	polls      []core.Poll
}

func (s *stubStore) FindMeeting(id core.RoomID) (*core.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.meeting == nil {
		return nil, fmt.Errorf("meeting %s: %w", id, core.ErrNotFound)
	}
	return s.meeting, nil
}

func (s *stubStore) AppendBroadcast(id core.RoomID, b core.ChatBroadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	s.broadcasts = append(s.broadcasts, b)
	return nil
}

func (s *stubStore) AddCoHost(id core.RoomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coHosts = append(s.coHosts, userID)
	return nil
}

func (s *stubStore) RemoveCoHost(id core.RoomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.coHosts {
		if u == userID {
			s.coHosts = append(s.coHosts[:i], s.coHosts[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubStore) UpdateStreamSource(id core.RoomID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.videoID = videoID
	return nil
}

func (s *stubStore) SavePollResult(id core.RoomID, poll *core.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls = append(s.polls, *poll)
	return nil
}

func (s *stubStore) savedCoHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.coHosts...)
}

func (s *stubStore) savedPolls() []core.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]core.Poll{}, s.polls...)
}

func (s *stubStore) savedBroadcasts() []core.ChatBroadcast {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]core.ChatBroadcast{}, s.broadcasts...)
}

type stubEngine struct {
	mu sync.Mutex

	routerCalls int
	routers     map[string]*stubRouter
	err         error
}

func newStubEngine() *stubEngine {
	return &stubEngine{routers: make(map[string]*stubRouter)}
}

func (e *stubEngine) GetOrCreateRouter(roomID string) (engine.Router, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.routerCalls++
	if e.err != nil {
		return nil, e.err
	}
	if router, ok := e.routers[roomID]; ok {
		return router, nil
	}
	router := &stubRouter{
		id:        "router-" + roomID,
		producers: make(map[string]*stubProducer),
	}
	e.routers[roomID] = router
	return router, nil
}

type stubRouter struct {
	mu sync.Mutex

	id           string
	closed       bool
	transportSeq int
	producers    map[string]*stubProducer
}

func (r *stubRouter) ID() string { return r.id }

func (r *stubRouter) Capabilities() engine.RTPCapabilities {
	return engine.RTPCapabilities{
		Codecs: []webrtc.RTPCodecParameters{
			{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}},
		},
	}
}

func (r *stubRouter) CreateTransport() (engine.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transportSeq++
	return &stubTransport{
		id:     fmt.Sprintf("%s-transport-%d", r.id, r.transportSeq),
		router: r,
	}, nil
}

func (r *stubRouter) CanConsume(producerID string, caps engine.RTPCapabilities) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.producers[producerID]; !ok {
		return false
	}
	return caps.Supports(webrtc.MimeTypeOpus)
}

func (r *stubRouter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

type stubTransport struct {
	mu sync.Mutex

	id        string
	router    *stubRouter
	closed    bool
	producers []*stubProducer
	consumers []*stubConsumer
	onClose   []func()
}

func (t *stubTransport) ID() string { return t.id }

func (t *stubTransport) Params() engine.TransportParams {
	return engine.TransportParams{ID: t.id}
}

func (t *stubTransport) Connect(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (t *stubTransport) Produce(kind string, params engine.RTPParameters) (engine.Producer, error) {
	if kind != engine.KindAudio {
		return nil, engine.ErrUnsupportedKind
	}

	t.mu.Lock()
	producer := &stubProducer{
		id:   fmt.Sprintf("%s-producer-%d", t.id, len(t.producers)+1),
		kind: kind,
	}
	t.producers = append(t.producers, producer)
	t.mu.Unlock()

	t.router.mu.Lock()
	t.router.producers[producer.id] = producer
	t.router.mu.Unlock()

	return producer, nil
}

func (t *stubTransport) Consume(producerID string, caps engine.RTPCapabilities) (engine.Consumer, error) {
	t.router.mu.Lock()
	producer, ok := t.router.producers[producerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, engine.ErrProducerNotFound
	}

	t.mu.Lock()
	consumer := &stubConsumer{
		id:         fmt.Sprintf("%s-consumer-%d", t.id, len(t.consumers)+1),
		producerID: producer.id,
		kind:       producer.kind,
	}
	t.consumers = append(t.consumers, consumer)
	t.mu.Unlock()

	producer.mu.Lock()
	producer.consumers = append(producer.consumers, consumer)
	producer.mu.Unlock()

	return consumer, nil
}

func (t *stubTransport) OnClose(fn func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		fn()
		return
	}
	t.onClose = append(t.onClose, fn)
	t.mu.Unlock()
}

func (t *stubTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	callbacks := t.onClose
	t.mu.Unlock()

	for _, producer := range producers {
		producer.transportClosed(t.router)
	}
	for _, consumer := range consumers {
		consumer.transportClosed()
	}
	for _, fn := range callbacks {
		fn()
	}
}

type stubProducer struct {
	mu sync.Mutex

	id               string
	kind             string
	closed           bool
	consumers        []*stubConsumer
	onTransportClose []func()
}

func (p *stubProducer) ID() string   { return p.id }
func (p *stubProducer) Kind() string { return p.kind }

func (p *stubProducer) RTPParameters() engine.RTPParameters {
	return engine.RTPParameters{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

func (p *stubProducer) OnTransportClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onTransportClose = append(p.onTransportClose, fn)
	p.mu.Unlock()
}

func (p *stubProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *stubProducer) transportClosed(router *stubRouter) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	consumers := p.consumers
	callbacks := p.onTransportClose
	p.mu.Unlock()

	router.mu.Lock()
	delete(router.producers, p.id)
	router.mu.Unlock()

	for _, consumer := range consumers {
		consumer.producerClosed()
	}
	for _, fn := range callbacks {
		fn()
	}
}

func (p *stubProducer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

type stubConsumer struct {
	mu sync.Mutex

	id               string
	producerID       string
	kind             string
	resumed          bool
	closed           bool
	onTransportClose []func()
	onProducerClose  []func()
}

func (c *stubConsumer) ID() string         { return c.id }
func (c *stubConsumer) ProducerID() string { return c.producerID }
func (c *stubConsumer) Kind() string       { return c.kind }

func (c *stubConsumer) RTPParameters() engine.RTPParameters {
	return engine.RTPParameters{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

func (c *stubConsumer) Resume() error {
	c.mu.Lock()
	c.resumed = true
	c.mu.Unlock()
	return nil
}

func (c *stubConsumer) OnTransportClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onTransportClose = append(c.onTransportClose, fn)
	c.mu.Unlock()
}

func (c *stubConsumer) OnProducerClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onProducerClose = append(c.onProducerClose, fn)
	c.mu.Unlock()
}

func (c *stubConsumer) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *stubConsumer) transportClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	callbacks := c.onTransportClose
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (c *stubConsumer) producerClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	callbacks := c.onProducerClose
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (c *stubConsumer) isResumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resumed
}

// stubBus records published frames instead of hitting redis.
type stubBus struct {
	mu sync.Mutex

	client map[core.ConnectionID][]rpc.Rpc
	room   map[core.RoomID][]rpc.Rpc
}

func newStubBus() *stubBus {
	return &stubBus{
		client: make(map[core.ConnectionID][]rpc.Rpc),
		room:   make(map[core.RoomID][]rpc.Rpc),
	}
}

func (b *stubBus) PublishClient(connID core.ConnectionID, event rpc.Rpc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.client[connID] = append(b.client[connID], event)
	return nil
}

func (b *stubBus) PublishRoom(roomID core.RoomID, event rpc.Rpc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.room[roomID] = append(b.room[roomID], event)
	return nil
}

func (b *stubBus) clientEvents(connID core.ConnectionID, method rpc.Method) []rpc.Rpc {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := []rpc.Rpc{}
	for _, event := range b.client[connID] {
		if event.GetMethod() == method {
			events = append(events, event)
		}
	}
	return events
}

func (b *stubBus) roomEvents(roomID core.RoomID, method rpc.Method) []rpc.Rpc {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := []rpc.Rpc{}
	for _, event := range b.room[roomID] {
		if event.GetMethod() == method {
			events = append(events, event)
		}
	}
	return events
}

func (b *stubBus) lastRoomEvent(roomID core.RoomID, method rpc.Method) (*rpc.Event, bool) {
	events := b.roomEvents(roomID, method)
	if len(events) == 0 {
		return nil, false
	}
	event, ok := events[len(events)-1].(*rpc.Event)
	return event, ok
}
