package rpc

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"

	"github.com/lumilive/seminar/internal/core"
)

// Event is a generic outbound frame. Ack responses echo the request id;
// fan-out frames carry none.
type Event struct {
	jsonRpcHead
	Params interface{} `json:"params,omitempty"`
}

func NewEvent(method Method, params interface{}) *Event {
	return &Event{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  method,
		},
		Params: params,
	}
}

// NewAck builds a response frame for an ack-style request.
func NewAck(id int64, method Method, params interface{}) *Event {
	e := NewEvent(method, params)
	e.jsonRpcHead.ID = &id
	return e
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type ErrorParams struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds the error frame for a failed request. The id is
// echoed when the request was ack-style.
func NewErrorEvent(id *int64, code, message string) *Event {
	e := NewEvent(ErrorMethod, ErrorParams{Code: code, Message: message})
	e.jsonRpcHead.ID = id
	return e
}

type PollTimerParams struct {
	TimeLeft int `json:"timeLeft"`
}

type VideoUpdateParams struct {
	VideoID string `json:"videoId"`
}

type NewProducerParams struct {
	ProducerID   string            `json:"producerId"`
	ConnectionID core.ConnectionID `json:"connectionId"`
}

type ConsumerClosedParams struct {
	ConsumerID string `json:"consumerId"`
}

type TransportAnswerParams struct {
	TransportID    string                    `json:"transportId"`
	DtlsParameters webrtc.SessionDescription `json:"dtlsParameters"`
}

type RoleUpdateParams struct {
	Role core.Role `json:"role"`
}

type AudioPermissionParams struct {
	CanProduce bool `json:"canProduce"`
}

type ProducerCreatedParams struct {
	ID string `json:"id"`
}

type ConsumerCreatedParams struct {
	ID            string      `json:"id"`
	ProducerID    string      `json:"producerId"`
	Kind          string      `json:"kind"`
	RtpParameters interface{} `json:"rtpParameters"`
}
