package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

// producer is one inbound audio stream published into a room. RTP read
// from the bound remote track is fanned out to every attached,
// resumed consumer.
type producer struct {
	id        string
	kind      string
	params    RTPParameters
	transport *transport

	mu        sync.Mutex
	remote    *webrtc.TrackRemote
	consumers map[string]*consumer
	closed    bool

	closeOnce        sync.Once
	onTransportClose []func()
}

func newProducer(t *transport, kind string, params RTPParameters) *producer {
	return &producer{
		id:        uuid.NewString(),
		kind:      kind,
		params:    params,
		transport: t,
		consumers: make(map[string]*consumer),
	}
}

func (p *producer) ID() string {
	return p.id
}

func (p *producer) Kind() string {
	return p.kind
}

func (p *producer) RTPParameters() RTPParameters {
	return p.params
}

// OnTransportClose registers fn to run when the producer goes away.
// When the producer is already closed fn fires right away; the owning
// transport can fail before the caller gets to register.
func (p *producer) OnTransportClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onTransportClose = append(p.onTransportClose, fn)
	p.mu.Unlock()
}

func (p *producer) bind(track *webrtc.TrackRemote) {
	p.mu.Lock()
	p.remote = track
	p.mu.Unlock()

	go p.forwardRTP(track)
}

func (p *producer) forwardRTP(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("service", "engine").Str("producerID", p.id).Msg("rtp read loop stopped")
			return
		}

		p.mu.Lock()
		consumers := make([]*consumer, 0, len(p.consumers))
		for _, c := range p.consumers {
			consumers = append(consumers, c)
		}
		p.mu.Unlock()

		for _, c := range consumers {
			c.write(pkt)
		}
	}
}

func (p *producer) attach(c *consumer) {
	p.mu.Lock()
	p.consumers[c.id] = c
	p.mu.Unlock()
}

func (p *producer) detach(id string) {
	p.mu.Lock()
	delete(p.consumers, id)
	p.mu.Unlock()
}

// transportClosed tears the producer down because its owning transport
// closed. Attached consumers observe it as a producer close.
func (p *producer) transportClosed() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		callbacks := p.onTransportClose
		consumers := p.snapshotConsumersLocked()
		p.mu.Unlock()

		p.teardown(consumers)

		for _, fn := range callbacks {
			fn()
		}
	})
}

func (p *producer) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		consumers := p.snapshotConsumersLocked()
		p.mu.Unlock()

		p.teardown(consumers)
	})
}

func (p *producer) snapshotConsumersLocked() []*consumer {
	consumers := make([]*consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	return consumers
}

func (p *producer) teardown(consumers []*consumer) {
	p.transport.router.removeProducer(p.id)
	p.transport.removeProducer(p.id)

	for _, c := range consumers {
		c.producerClosed()
	}

	log.Debug().Str("service", "engine").Str("producerID", p.id).Msg("producer closed")
}
