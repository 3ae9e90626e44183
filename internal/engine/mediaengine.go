package engine

import (
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/lumilive/seminar/internal/config"
)

const opusPayloadType = 111

func audioCodecs() []webrtc.RTPCodecParameters {
	return []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: opusPayloadType,
		},
	}
}

func createMediaEngine(enabledCodecs []config.CodecSpec, directionConfig config.DirectionConfig) (*webrtc.MediaEngine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := registerCodecs(mediaEngine, enabledCodecs); err != nil {
		return nil, err
	}

	for _, extension := range directionConfig.RTPHeaderExtension.Audio {
		if err := mediaEngine.RegisterHeaderExtension(
			webrtc.RTPHeaderExtensionCapability{URI: extension},
			webrtc.RTPCodecTypeAudio,
		); err != nil {
			return nil, err
		}
	}

	return mediaEngine, nil
}

func registerCodecs(mediaEngine *webrtc.MediaEngine, enabledCodecs []config.CodecSpec) error {
	for _, codec := range audioCodecs() {
		if !isCodecEnabled(enabledCodecs, codec.RTPCodecCapability) {
			continue
		}
		if err := mediaEngine.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
			return err
		}
	}

	return nil
}

func newPeerConnectionAPI(conf *config.WebRTCConfig, direction config.DirectionConfig) (*webrtc.API, error) {
	mediaEngine, err := createMediaEngine(conf.EnabledCodecs, direction)
	if err != nil {
		return nil, err
	}

	// The interceptor registry is the user configurable RTP/RTCP
	// pipeline; it must be created per API when the media engine is
	// managed manually.
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	se := conf.SettingEngine
	se.DisableMediaEngineCopy(true)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}

func isCodecEnabled(codecs []config.CodecSpec, cap webrtc.RTPCodecCapability) bool {
	for _, codec := range codecs {
		if !strings.EqualFold(codec.Mime, cap.MimeType) {
			continue
		}
		if codec.FmtpLine == "" || strings.EqualFold(codec.FmtpLine, cap.SDPFmtpLine) {
			return true
		}
	}
	return false
}
