package rpc

import (
	"encoding/json"
	"errors"
	"io"
)

const jsonRpcVersion = "2.0"

type Method string

// Inbound methods
const (
	JoinRoomMethod           Method = "join-room"
	ToggleHandMethod         Method = "toggle-hand"
	HostActionMethod         Method = "host-action"
	CreatePollMethod         Method = "create-poll"
	VotePollMethod           Method = "vote-poll"
	ChatMessageMethod        Method = "chat-message"
	UpdateVideoMethod        Method = "update-video-id"
	RouterCapabilitiesMethod Method = "getRouterRtpCapabilities"
	CreateTransportMethod    Method = "createWebRtcTransport"
	TransportConnectMethod   Method = "transport-connect"
	TransportRecvConnect     Method = "transport-recv-connect"
	TransportProduceMethod   Method = "transport-produce"
	ConsumeMethod            Method = "consume"
	ConsumerResumeMethod     Method = "consumer-resume"
)

// Outbound methods
const (
	UpdateUsersMethod     Method = "update-users"
	ChatHistoryMethod     Method = "chat-history"
	ChatBroadcastMethod   Method = "chat-broadcast"
	PollUpdateMethod      Method = "poll-update"
	PollTimerMethod       Method = "poll-timer"
	PollEndMethod         Method = "poll-end"
	VideoUpdateMethod     Method = "video-update"
	NewProducerMethod     Method = "new-producer"
	ConsumerClosedMethod  Method = "consumer-closed"
	TransportAnswerMethod Method = "transport-answer"
	KickedMethod          Method = "kicked"
	RoleUpdateMethod      Method = "role-update"
	MutedByHostMethod     Method = "muted-by-host"
	AudioPermissionMethod Method = "remote-audio-permission"
	ErrorMethod           Method = "error"
)

var (
	ErrUnknownRpcType = errors.New("unknown RPC type")
	ErrMalformedRpc   = errors.New("malformed RPC")
)

type Rpc interface {
	GetMethod() Method
	ToJSON() ([]byte, error)
}

type jsonRpcHead struct {
	Version string `json:"jsonrpc"`
	// ID is set on ack-style requests; the response frame echoes it.
	ID     *int64 `json:"id,omitempty"`
	Method Method `json:"method"`
}

type jsonRpc struct {
	jsonRpcHead
	Params json.RawMessage `json:"params"`
}

// FromReader parses one inbound frame into its typed representation.
func FromReader(reader io.Reader) (Rpc, error) {
	raw := &jsonRpc{}

	if err := json.NewDecoder(reader).Decode(raw); err != nil {
		return nil, ErrMalformedRpc
	}

	decode := func(v interface{}) error {
		if len(raw.Params) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw.Params, v); err != nil {
			return ErrMalformedRpc
		}
		return nil
	}

	switch raw.Method {
	case JoinRoomMethod:
		r := &JoinRoomRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case ToggleHandMethod:
		r := &ToggleHandRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case HostActionMethod:
		r := &HostActionRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case CreatePollMethod:
		r := &CreatePollRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case VotePollMethod:
		r := &VotePollRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case ChatMessageMethod:
		r := &ChatMessageRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case UpdateVideoMethod:
		r := &UpdateVideoRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case RouterCapabilitiesMethod:
		r := &RouterCapabilitiesRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case CreateTransportMethod:
		r := &CreateTransportRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case TransportConnectMethod, TransportRecvConnect:
		r := &TransportConnectRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case TransportProduceMethod:
		r := &TransportProduceRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case ConsumeMethod:
		r := &ConsumeRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	case ConsumerResumeMethod:
		r := &ConsumerResumeRpc{jsonRpcHead: raw.jsonRpcHead}
		return r, decode(&r.Params)
	default:
		return nil, ErrUnknownRpcType
	}
}

func (h jsonRpcHead) GetMethod() Method {
	return h.Method
}

func (h jsonRpcHead) GetID() *int64 {
	return h.ID
}
