package engine

import (
	"errors"
	"strings"

	"github.com/pion/webrtc/v3"
)

// Package engine is the coordinator's capability surface on the media
// routing layer. The coordinator only ever talks to these interfaces;
// the pion-backed implementation lives in this package, tests use
// hand-written fakes.

var (
	ErrTransportClosed  = errors.New("transport is closed")
	ErrRouterClosed     = errors.New("router is closed")
	ErrUnsupportedKind  = errors.New("unsupported media kind")
	ErrProducerNotFound = errors.New("producer not found")
)

// KindAudio is the only media kind the engine routes. Seminars carry
// video over an external playback source.
const KindAudio = "audio"

// RTPCapabilities is the codec capability set of a router or a
// consuming endpoint.
type RTPCapabilities struct {
	Codecs []webrtc.RTPCodecParameters `json:"codecs"`
}

// Supports reports whether the capability set includes the given mime type.
func (c RTPCapabilities) Supports(mimeType string) bool {
	for _, codec := range c.Codecs {
		if strings.EqualFold(codec.MimeType, mimeType) {
			return true
		}
	}
	return false
}

// RTPParameters describes a single produced or consumed media stream.
type RTPParameters struct {
	TrackID   string `json:"trackId"`
	StreamID  string `json:"streamId"`
	MimeType  string `json:"mimeType"`
	ClockRate uint32 `json:"clockRate"`
	Channels  uint16 `json:"channels"`
}

// TransportParams is what a client needs to start connecting a
// freshly created transport.
type TransportParams struct {
	ID         string             `json:"id"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type Engine interface {
	GetOrCreateRouter(roomID string) (Router, error)
}

type Router interface {
	ID() string
	Capabilities() RTPCapabilities
	CreateTransport() (Transport, error)
	// CanConsume reports whether an endpoint with the given
	// capabilities is able to consume the producer.
	CanConsume(producerID string, caps RTPCapabilities) bool
	Close()
}

type Transport interface {
	ID() string
	Params() TransportParams
	// Connect applies the remote session description and returns the
	// local answer with gathered candidates.
	Connect(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	Produce(kind string, params RTPParameters) (Producer, error)
	Consume(producerID string, caps RTPCapabilities) (Consumer, error)
	OnClose(fn func())
	Close()
}

type Producer interface {
	ID() string
	Kind() string
	RTPParameters() RTPParameters
	// OnTransportClose fires once when the owning transport closes.
	OnTransportClose(fn func())
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() string
	RTPParameters() RTPParameters
	// Resume starts delivery; consumers are created paused.
	Resume() error
	OnTransportClose(fn func())
	OnProducerClose(fn func())
	Close()
}
