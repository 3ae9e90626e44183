package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

// consumer is one outbound audio stream delivered from a producer.
// Created paused; delivery starts on Resume.
type consumer struct {
	id        string
	producer  *producer
	transport *transport
	track     *webrtc.TrackLocalStaticRTP
	sender    *webrtc.RTPSender

	paused atomic.Bool

	mu               sync.Mutex
	closed           bool
	closeOnce        sync.Once
	onTransportClose []func()
	onProducerClose  []func()
}

func newConsumer(t *transport, p *producer) (*consumer, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{
			MimeType:  p.params.MimeType,
			ClockRate: p.params.ClockRate,
			Channels:  p.params.Channels,
		},
		uuid.NewString(),
		p.params.StreamID,
	)
	if err != nil {
		return nil, err
	}

	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}

	c := &consumer{
		id:        uuid.NewString(),
		producer:  p,
		transport: t,
		track:     track,
		sender:    sender,
	}
	c.paused.Store(true)

	// Drain RTCP so the interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	return c, nil
}

func (c *consumer) ID() string {
	return c.id
}

func (c *consumer) ProducerID() string {
	return c.producer.id
}

func (c *consumer) Kind() string {
	return c.producer.kind
}

func (c *consumer) RTPParameters() RTPParameters {
	params := c.producer.params
	params.TrackID = c.track.ID()
	return params
}

func (c *consumer) Resume() error {
	c.paused.Store(false)
	return nil
}

// OnTransportClose registers fn to run when the owning transport
// closes. The teardown can race the registration, so fn fires right
// away when the consumer is already closed.
func (c *consumer) OnTransportClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onTransportClose = append(c.onTransportClose, fn)
	c.mu.Unlock()
}

// OnProducerClose registers fn to run when the consumed producer
// closes, with the same already-closed semantics as OnTransportClose.
func (c *consumer) OnProducerClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onProducerClose = append(c.onProducerClose, fn)
	c.mu.Unlock()
}

func (c *consumer) write(pkt *rtp.Packet) {
	if c.paused.Load() {
		return
	}

	if err := c.track.WriteRTP(pkt); err != nil {
		log.Debug().Err(err).Str("service", "engine").Str("consumerID", c.id).Msg("rtp write failed")
	}
}

func (c *consumer) transportClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		callbacks := c.onTransportClose
		c.mu.Unlock()

		c.teardown()

		for _, fn := range callbacks {
			fn()
		}
	})
}

func (c *consumer) producerClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		callbacks := c.onProducerClose
		c.mu.Unlock()

		c.teardown()

		for _, fn := range callbacks {
			fn()
		}
	})
}

func (c *consumer) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.teardown()
	})
}

func (c *consumer) teardown() {
	c.paused.Store(true)
	c.producer.detach(c.id)
	c.transport.removeConsumer(c.id)

	if err := c.transport.pc.RemoveTrack(c.sender); err != nil {
		log.Debug().Err(err).Str("service", "engine").Str("consumerID", c.id).Msg("remove track")
	}

	log.Debug().Str("service", "engine").Str("consumerID", c.id).Msg("consumer closed")
}
