package rpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumilive/seminar/internal/core"
)

func TestFromReaderJoinRoom(t *testing.T) {
	payload := `{"jsonrpc":"2.0","method":"join-room","params":{"roomId":"m-1","name":"Alice","role":"user","userId":"u-42"}}`

	r, err := FromReader(strings.NewReader(payload))
	assert.Nil(t, err)
	assert.Equal(t, JoinRoomMethod, r.GetMethod())

	join, ok := r.(*JoinRoomRpc)
	assert.True(t, ok)
	assert.Equal(t, core.RoomID("m-1"), join.Params.RoomID)
	assert.Equal(t, "Alice", join.Params.Name)
	assert.Equal(t, core.RoleUser, join.Params.Role)
	assert.Equal(t, "u-42", join.Params.UserID)
	assert.Nil(t, join.GetID())
}

func TestFromReaderAckCarriesID(t *testing.T) {
	payload := `{"jsonrpc":"2.0","id":7,"method":"createWebRtcTransport","params":{"roomId":"m-1"}}`

	r, err := FromReader(strings.NewReader(payload))
	assert.Nil(t, err)

	create, ok := r.(*CreateTransportRpc)
	assert.True(t, ok)
	assert.NotNil(t, create.GetID())
	assert.Equal(t, int64(7), *create.GetID())
}

func TestFromReaderHostAction(t *testing.T) {
	payload := `{"jsonrpc":"2.0","method":"host-action","params":{"roomId":"m-1","action":"kick","targetId":"conn-2"}}`

	r, err := FromReader(strings.NewReader(payload))
	assert.Nil(t, err)

	action, ok := r.(*HostActionRpc)
	assert.True(t, ok)
	assert.Equal(t, core.ActionKick, action.Params.Action)
	assert.Equal(t, core.ConnectionID("conn-2"), action.Params.TargetID)
}

func TestFromReaderRecvConnectSharesConnectType(t *testing.T) {
	payload := `{"jsonrpc":"2.0","method":"transport-recv-connect","params":{"roomId":"m-1","transportId":"t-1"}}`

	r, err := FromReader(strings.NewReader(payload))
	assert.Nil(t, err)

	connect, ok := r.(*TransportConnectRpc)
	assert.True(t, ok)
	assert.Equal(t, TransportRecvConnect, connect.GetMethod())
	assert.Equal(t, "t-1", connect.Params.TransportID)
}

func TestFromReaderUnknownMethod(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{"jsonrpc":"2.0","method":"reboot"}`))
	assert.Equal(t, ErrUnknownRpcType, err)
}

func TestFromReaderMalformed(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{`))
	assert.Equal(t, ErrMalformedRpc, err)

	_, err = FromReader(strings.NewReader(`{"jsonrpc":"2.0","method":"vote-poll","params":{"optionIndex":"NaN"}}`))
	assert.Equal(t, ErrMalformedRpc, err)
}

func TestEventRoundTrip(t *testing.T) {
	event := NewAck(3, PollUpdateMethod, &core.Poll{ID: "p-1", Question: "Color?"})

	raw, err := event.ToJSON()
	assert.Nil(t, err)

	decoded := map[string]interface{}{}
	assert.Nil(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, float64(3), decoded["id"])
	assert.Equal(t, string(PollUpdateMethod), decoded["method"])
}

func TestErrorEvent(t *testing.T) {
	id := int64(11)
	event := NewErrorEvent(&id, "permission_denied", "co-hosts cannot act on the host")

	raw, err := event.ToJSON()
	assert.Nil(t, err)
	assert.Contains(t, string(raw), `"permission_denied"`)
	assert.Contains(t, string(raw), `"id":11`)
	assert.Equal(t, ErrorMethod, event.GetMethod())
}
