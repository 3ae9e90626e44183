package rpc

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
)

// Inbound frame types. Every params payload carries the room id.

type JoinRoomParams struct {
	RoomID core.RoomID `json:"roomId"`
	Name   string      `json:"name"`
	Role   core.Role   `json:"role"`
	UserID string      `json:"userId,omitempty"`
}

type JoinRoomRpc struct {
	jsonRpcHead
	Params JoinRoomParams `json:"params"`
}

type RoomParams struct {
	RoomID core.RoomID `json:"roomId"`
}

type ToggleHandRpc struct {
	jsonRpcHead
	Params RoomParams `json:"params"`
}

type HostActionParams struct {
	RoomID   core.RoomID       `json:"roomId"`
	Action   core.HostAction   `json:"action"`
	TargetID core.ConnectionID `json:"targetId"`
}

type HostActionRpc struct {
	jsonRpcHead
	Params HostActionParams `json:"params"`
}

type CreatePollParams struct {
	RoomID   core.RoomID `json:"roomId"`
	Question string      `json:"question"`
	Options  []string    `json:"options"`
	Duration int         `json:"duration"`
}

type CreatePollRpc struct {
	jsonRpcHead
	Params CreatePollParams `json:"params"`
}

type VotePollParams struct {
	RoomID      core.RoomID `json:"roomId"`
	OptionIndex int         `json:"optionIndex"`
}

type VotePollRpc struct {
	jsonRpcHead
	Params VotePollParams `json:"params"`
}

type ChatMessageParams struct {
	RoomID  core.RoomID `json:"roomId"`
	Message string      `json:"message"`
	Name    string      `json:"name"`
}

type ChatMessageRpc struct {
	jsonRpcHead
	Params ChatMessageParams `json:"params"`
}

type UpdateVideoParams struct {
	RoomID  core.RoomID `json:"roomId"`
	VideoID string      `json:"videoId"`
}

type UpdateVideoRpc struct {
	jsonRpcHead
	Params UpdateVideoParams `json:"params"`
}

type RouterCapabilitiesRpc struct {
	jsonRpcHead
	Params RoomParams `json:"params"`
}

type CreateTransportRpc struct {
	jsonRpcHead
	Params RoomParams `json:"params"`
}

type TransportConnectParams struct {
	RoomID      core.RoomID `json:"roomId"`
	TransportID string      `json:"transportId"`
	// DTLS and ICE material rides inside the offer description
	DtlsParameters webrtc.SessionDescription `json:"dtlsParameters"`
}

type TransportConnectRpc struct {
	jsonRpcHead
	Params TransportConnectParams `json:"params"`
}

type TransportProduceParams struct {
	RoomID        core.RoomID          `json:"roomId"`
	TransportID   string               `json:"transportId"`
	Kind          string               `json:"kind"`
	RtpParameters engine.RTPParameters `json:"rtpParameters"`
}

type TransportProduceRpc struct {
	jsonRpcHead
	Params TransportProduceParams `json:"params"`
}

type ConsumeParams struct {
	RoomID          core.RoomID            `json:"roomId"`
	TransportID     string                 `json:"transportId"`
	ProducerID      string                 `json:"producerId"`
	RtpCapabilities engine.RTPCapabilities `json:"rtpCapabilities"`
}

type ConsumeRpc struct {
	jsonRpcHead
	Params ConsumeParams `json:"params"`
}

type ConsumerResumeParams struct {
	RoomID     core.RoomID `json:"roomId"`
	ConsumerID string      `json:"consumerId"`
}

type ConsumerResumeRpc struct {
	jsonRpcHead
	Params ConsumerResumeParams `json:"params"`
}

func (r JoinRoomRpc) ToJSON() ([]byte, error)           { return json.Marshal(r) }
func (r ToggleHandRpc) ToJSON() ([]byte, error)         { return json.Marshal(r) }
func (r HostActionRpc) ToJSON() ([]byte, error)         { return json.Marshal(r) }
func (r CreatePollRpc) ToJSON() ([]byte, error)         { return json.Marshal(r) }
func (r VotePollRpc) ToJSON() ([]byte, error)           { return json.Marshal(r) }
func (r ChatMessageRpc) ToJSON() ([]byte, error)        { return json.Marshal(r) }
func (r UpdateVideoRpc) ToJSON() ([]byte, error)        { return json.Marshal(r) }
func (r RouterCapabilitiesRpc) ToJSON() ([]byte, error) { return json.Marshal(r) }
func (r CreateTransportRpc) ToJSON() ([]byte, error)    { return json.Marshal(r) }
func (r TransportConnectRpc) ToJSON() ([]byte, error)   { return json.Marshal(r) }
func (r TransportProduceRpc) ToJSON() ([]byte, error)   { return json.Marshal(r) }
func (r ConsumeRpc) ToJSON() ([]byte, error)            { return json.Marshal(r) }
func (r ConsumerResumeRpc) ToJSON() ([]byte, error)     { return json.Marshal(r) }
