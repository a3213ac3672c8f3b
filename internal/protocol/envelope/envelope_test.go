package envelope

import (
	"encoding/json"
	"proof_bridge/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDropsForeignTraffic(t *testing.T) {
	codec := NewCodec("")

	for _, data := range []string{
		`not json at all`,
		`{"type":"get-state","to":"background"}`,
		`{"origin":"someone-else","type":"get-state","to":"background"}`,
		`{"origin":42}`,
		`"just a string"`,
	} {
		env, ok, err := codec.Decode([]byte(data))
		assert.NoError(t, err, data)
		assert.False(t, ok, data)
		assert.Nil(t, env, data)
	}
}

func TestDecodeRejectsMalformedOwnTraffic(t *testing.T) {
	codec := NewCodec("tag")

	_, ok, err := codec.Decode([]byte(`{"origin":"tag","to":"nowhere","type":"x"}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformed)

	_, ok, err = codec.Decode([]byte(`{"origin":"tag","to":"background","type":""}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeDecode(t *testing.T) {
	codec := NewCodec("tag")
	b := NewBuilder(model.RoleInjected, "tag")

	env, err := b.New(model.RoleBackground, model.TypeGetState, model.GetStateRequest{Store: "state"}, ToWidget(3))
	require.NoError(t, err)
	assert.Equal(t, model.RoleInjected, env.From)
	assert.Equal(t, "tag", env.Origin)
	assert.NotEmpty(t, env.Serial)
	require.NotNil(t, env.WidgetID)
	assert.Equal(t, 3, *env.WidgetID)

	data, err := codec.Encode(env)
	require.NoError(t, err)

	got, ok, err := codec.Decode(data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, env.Serial, got.Serial)
	assert.JSONEq(t, `{"store":"state"}`, string(got.Payload))
}

func TestSerialsDiffer(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		s := NewSerial()
		_, dup := seen[s]
		require.False(t, dup)
		seen[s] = struct{}{}
	}
}

func TestReplyFollowsSuffixRule(t *testing.T) {
	req, err := NewBuilder(model.RoleInjected, "").New(model.RoleBackground, model.TypeSetState, nil)
	require.NoError(t, err)

	resp, err := NewBuilder(model.RoleBackground, "").Reply(req, model.Ack{})
	require.NoError(t, err)

	assert.Equal(t, "set-state-response", resp.Type)
	assert.Equal(t, req.Serial, resp.ResponseTo)
	assert.Equal(t, model.RoleInjected, resp.To)
	assert.Equal(t, model.RoleBackground, resp.From)
	assert.NotEqual(t, req.Serial, resp.Serial)
	assert.True(t, IsResponse(resp))
	assert.False(t, IsResponse(req))
	assert.JSONEq(t, `{}`, string(resp.Payload))
}

func TestIsResponseNeedsBothMarkers(t *testing.T) {
	assert.False(t, IsResponse(&model.Envelope{Type: "get-state-response"}))
	assert.False(t, IsResponse(&model.Envelope{Type: "get-state", ResponseTo: "1"}))
}

func TestForwardPreservesSender(t *testing.T) {
	orig, err := NewBuilder(model.RoleInjected, "").New(model.RoleBackground, model.TypeGetState, nil)
	require.NoError(t, err)

	fwd, err := NewBuilder(model.RoleContent, "").Forward(orig)
	require.NoError(t, err)
	assert.Equal(t, model.TypeForward, fwd.Type)
	assert.Equal(t, model.RoleContent, fwd.From)

	inner, err := Unwrap(fwd)
	require.NoError(t, err)
	assert.Equal(t, orig.Serial, inner.Serial)
	assert.Equal(t, model.RoleInjected, inner.From)

	_, err = Unwrap(orig)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodePayload(t *testing.T) {
	var req model.SetStateRequest
	env := &model.Envelope{Payload: json.RawMessage(`{"store":"state","key":"staging","value":true}`)}
	require.NoError(t, DecodePayload(env, &req))
	assert.Equal(t, "staging", req.Key)
	assert.JSONEq(t, `true`, string(req.Value))

	req = model.SetStateRequest{Store: "keep"}
	require.NoError(t, DecodePayload(&model.Envelope{}, &req))
	assert.Equal(t, "keep", req.Store)
}
