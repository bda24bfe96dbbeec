package protocol

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		Login{UserToken: "alice", DeviceToken: "laptop", SecretKey: "s3cret"},
		Sync{DevicePts: 42},
		SendMessage{Receiver: "bob", Contents: "hi bob"},
	}
	for _, c := range cmds {
		raw, err := EncodeCommand(c)
		require.NoError(t, err)
		got, err := DecodeCommand(raw)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestDecodeCommandWireFormat(t *testing.T) {
	got, err := DecodeCommand([]byte(`{"cmd":"login","user_token":"u","device_token":"d","secret_key":"k"}`))
	require.NoError(t, err)
	require.Equal(t, Login{UserToken: "u", DeviceToken: "d", SecretKey: "k"}, got)

	got, err = DecodeCommand([]byte(`{"cmd":"sync","device_pts":18446744073709551615}`))
	require.NoError(t, err)
	require.Equal(t, Sync{DevicePts: 18446744073709551615}, got)

	got, err = DecodeCommand([]byte(`{"receiver":"bob","cmd":"send_message","contents":"yo","extra":1}`))
	require.NoError(t, err)
	require.Equal(t, SendMessage{Receiver: "bob", Contents: "yo"}, got)
}

func TestDecodeCommandErrors(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"cmd":"logout"}`))
	require.True(t, errors.Is(err, ErrUnknownCommand))

	_, err = DecodeCommand([]byte(`not json`))
	require.Error(t, err)

	_, err = DecodeCommand([]byte(`{"cmd":"sync","device_pts":-1}`))
	require.Error(t, err)
}

func TestDecodeCommandMissingFields(t *testing.T) {
	frames := []string{
		`{"cmd":"login"}`,
		`{"cmd":"login","user_token":"u","device_token":"d"}`,
		`{"cmd":"login","user_token":null,"device_token":"d","secret_key":"k"}`,
		`{"cmd":"sync"}`,
		`{"cmd":"sync","device_pts":null}`,
		`{"cmd":"send_message"}`,
		`{"cmd":"send_message","receiver":"bob"}`,
		`{"cmd":"send_message","contents":"hi"}`,
	}
	for _, f := range frames {
		_, err := DecodeCommand([]byte(f))
		require.True(t, errors.Is(err, ErrMissingField), "frame %s: %v", f, err)
	}

	// empty strings are present, not missing
	got, err := DecodeCommand([]byte(`{"cmd":"send_message","receiver":"","contents":""}`))
	require.NoError(t, err)
	require.Equal(t, SendMessage{}, got)
}

func TestEventRoundTrip(t *testing.T) {
	upd := Update{Pts: 7, Payload: NewMessage{Sender: "alice", Contents: "ping"}}
	events := []Event{
		DeviceOnline{},
		DeviceOffline{},
		LoggedIn{},
		SyncUpdates{TooLong: true, Synced: false, Updates: []Update{upd}},
		SyncUpdates{Synced: true, Updates: []Update{}},
		UpdatePushed{Update: upd},
	}
	for _, e := range events {
		raw, err := EncodeEvent(e)
		require.NoError(t, err)
		got, err := DecodeEvent(raw)
		require.NoError(t, err)
		require.Equal(t, e, got)
	}
}

func TestEventWireFormat(t *testing.T) {
	raw, err := EncodeEvent(SyncUpdates{Synced: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"sync_updates","too_long":false,"synced":true,"updates":[]}`, string(raw))

	raw, err = EncodeEvent(UpdatePushed{Update: Update{Pts: 3, Payload: NewMessage{Sender: "a", Contents: "b"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"update","pts":3,"payload":{"type":"new_message","sender":"a","contents":"b"}}`, string(raw))

	raw, err = EncodeEvent(LoggedIn{})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"logged_in"}`, string(raw))
}

func TestUpdateRoundTrip(t *testing.T) {
	u := Update{Pts: 1, Payload: NewMessage{Sender: "x", Contents: "with \"quotes\" and ünïcode"}}
	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var got Update
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, u, got)
}

func TestUpdateUnknownPayload(t *testing.T) {
	var u Update
	err := json.Unmarshal([]byte(`{"pts":1,"payload":{"type":"reaction"}}`), &u)
	require.True(t, errors.Is(err, ErrUnknownPayload))

	_, err = json.Marshal(Update{Pts: 1})
	require.Error(t, err)
}
