package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Inbound command tags (the "cmd" field).
const (
	CmdLogin       = "login"
	CmdSync        = "sync"
	CmdSendMessage = "send_message"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingField   = errors.New("missing required field")
)

// Command is a decoded client -> server frame.
type Command interface {
	Cmd() string
	isCommand()
}

type Login struct {
	UserToken   string `json:"user_token"`
	DeviceToken string `json:"device_token"`
	SecretKey   string `json:"secret_key"`
}

type Sync struct {
	DevicePts uint64 `json:"device_pts"`
}

type SendMessage struct {
	Receiver string `json:"receiver"`
	Contents string `json:"contents"`
}

func (Login) Cmd() string       { return CmdLogin }
func (Sync) Cmd() string        { return CmdSync }
func (SendMessage) Cmd() string { return CmdSendMessage }

func (Login) isCommand()       {}
func (Sync) isCommand()        {}
func (SendMessage) isCommand() {}

type cmdTag struct {
	Cmd string `json:"cmd"`
}

type loginWire struct {
	Cmd string `json:"cmd"`
	Login
}

type syncWire struct {
	Cmd string `json:"cmd"`
	Sync
}

type sendMessageWire struct {
	Cmd string `json:"cmd"`
	SendMessage
}

// Decoding targets. Every field is required; a missing or null field is left nil.
type loginIn struct {
	UserToken   *string `json:"user_token"`
	DeviceToken *string `json:"device_token"`
	SecretKey   *string `json:"secret_key"`
}

type syncIn struct {
	DevicePts *uint64 `json:"device_pts"`
}

type sendMessageIn struct {
	Receiver *string `json:"receiver"`
	Contents *string `json:"contents"`
}

// DecodeCommand parses one text frame. The command is selected by its "cmd" tag;
// unknown fields are ignored and every known field must be present.
func DecodeCommand(raw []byte) (Command, error) {
	var tag cmdTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrap(err, "decode command tag failed")
	}
	switch tag.Cmd {
	case CmdLogin:
		var w loginIn
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.Wrap(err, "decode login failed")
		}
		if err := checkPresent(CmdLogin,
			field{"user_token", w.UserToken != nil},
			field{"device_token", w.DeviceToken != nil},
			field{"secret_key", w.SecretKey != nil},
		); err != nil {
			return nil, err
		}
		return Login{UserToken: *w.UserToken, DeviceToken: *w.DeviceToken, SecretKey: *w.SecretKey}, nil
	case CmdSync:
		var w syncIn
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.Wrap(err, "decode sync failed")
		}
		if err := checkPresent(CmdSync, field{"device_pts", w.DevicePts != nil}); err != nil {
			return nil, err
		}
		return Sync{DevicePts: *w.DevicePts}, nil
	case CmdSendMessage:
		var w sendMessageIn
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.Wrap(err, "decode send_message failed")
		}
		if err := checkPresent(CmdSendMessage,
			field{"receiver", w.Receiver != nil},
			field{"contents", w.Contents != nil},
		); err != nil {
			return nil, err
		}
		return SendMessage{Receiver: *w.Receiver, Contents: *w.Contents}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCommand, "%q", tag.Cmd)
	}
}

type field struct {
	name    string
	present bool
}

func checkPresent(cmd string, fields ...field) error {
	for _, f := range fields {
		if !f.present {
			return errors.Wrapf(ErrMissingField, "%s.%s", cmd, f.name)
		}
	}
	return nil
}

func EncodeCommand(c Command) ([]byte, error) {
	switch v := c.(type) {
	case Login:
		return json.Marshal(loginWire{Cmd: CmdLogin, Login: v})
	case Sync:
		return json.Marshal(syncWire{Cmd: CmdSync, Sync: v})
	case SendMessage:
		return json.Marshal(sendMessageWire{Cmd: CmdSendMessage, SendMessage: v})
	default:
		return nil, errors.Wrapf(ErrUnknownCommand, "%T", c)
	}
}
