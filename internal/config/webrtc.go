package config

import (
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
)

var DefaultStunServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
}

type CodecSpec struct {
	Mime     string
	FmtpLine string
}

// WebRTCConfig carries everything the media engine needs to build peer
// connections. The engine is audio-only: seminars deliver video via an
// external playback source, only microphone audio flows through here.
type WebRTCConfig struct {
	Configuration webrtc.Configuration
	SettingEngine webrtc.SettingEngine
	EnabledCodecs []CodecSpec
	Publisher     DirectionConfig
	Subscriber    DirectionConfig
}

type RTPHeaderExtensionConfig struct {
	Audio []string
}

type RTCPFeedbackConfig struct {
	Audio []webrtc.RTCPFeedback
}

type DirectionConfig struct {
	RTPHeaderExtension RTPHeaderExtensionConfig
	RTCPFeedback       RTCPFeedbackConfig
}

func NewWebRTCConfig(conf *Config) (*WebRTCConfig, error) {
	c := webrtc.Configuration{
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}

	iceServers := make([]webrtc.ICEServer, 0, len(conf.RTC.StunServers))
	for _, server := range conf.RTC.StunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{"stun:" + server}})
	}
	c.ICEServers = iceServers

	s := webrtc.SettingEngine{}

	networkTypes := make([]webrtc.NetworkType, 0, 2)
	// Use only UDP
	networkTypes = append(networkTypes,
		webrtc.NetworkTypeUDP4, webrtc.NetworkTypeUDP6,
	)
	if err := s.SetEphemeralUDPPortRange(uint16(conf.RTC.ICEPortRangeStart), uint16(conf.RTC.ICEPortRangeEnd)); err != nil {
		return nil, err
	}
	s.SetNetworkTypes(networkTypes)

	publisherConfig := DirectionConfig{
		RTPHeaderExtension: RTPHeaderExtensionConfig{
			Audio: []string{
				sdp.SDESMidURI,
				sdp.SDESRTPStreamIDURI,
				sdp.AudioLevelURI,
			},
		},
	}

	subscriberConfig := DirectionConfig{
		RTPHeaderExtension: RTPHeaderExtensionConfig{
			Audio: []string{
				sdp.SDESMidURI,
				sdp.AudioLevelURI,
			},
		},
	}

	return &WebRTCConfig{
		Configuration: c,
		SettingEngine: s,
		EnabledCodecs: []CodecSpec{
			{Mime: webrtc.MimeTypeOpus},
		},
		Publisher:  publisherConfig,
		Subscriber: subscriberConfig,
	}, nil
}
