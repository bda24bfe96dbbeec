package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Payload type tags.
const (
	PayloadNewMessage = "new_message"
)

var ErrUnknownPayload = errors.New("unknown update payload type")

// Payload is the closed set of update bodies. Implementations live in this package only.
type Payload interface {
	PayloadType() string
	isPayload()
}

// NewMessage is posted to a receiver's mailbox by send_message.
type NewMessage struct {
	Sender   string `json:"sender"`
	Contents string `json:"contents"`
}

func (NewMessage) PayloadType() string { return PayloadNewMessage }
func (NewMessage) isPayload()          {}

// Update is one immutable, sequenced entry of a user's log.
type Update struct {
	Pts     uint64  `json:"pts"`
	Payload Payload `json:"payload"`
}

type newMessageWire struct {
	Type string `json:"type"`
	NewMessage
}

type typeTag struct {
	Type string `json:"type"`
}

type updateWire struct {
	Pts     uint64          `json:"pts"`
	Payload json.RawMessage `json:"payload"`
}

func MarshalPayload(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case NewMessage:
		return json.Marshal(newMessageWire{Type: PayloadNewMessage, NewMessage: v})
	case *NewMessage:
		return json.Marshal(newMessageWire{Type: PayloadNewMessage, NewMessage: *v})
	case nil:
		return nil, errors.Wrap(ErrUnknownPayload, "nil payload")
	default:
		return nil, errors.Wrapf(ErrUnknownPayload, "%T", p)
	}
}

func UnmarshalPayload(raw []byte) (Payload, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrap(err, "decode payload tag failed")
	}
	switch tag.Type {
	case PayloadNewMessage:
		var w newMessageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.Wrap(err, "decode new_message failed")
		}
		return w.NewMessage, nil
	default:
		return nil, errors.Wrapf(ErrUnknownPayload, "%q", tag.Type)
	}
}

func (u Update) MarshalJSON() ([]byte, error) {
	p, err := MarshalPayload(u.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(updateWire{Pts: u.Pts, Payload: p})
}

func (u *Update) UnmarshalJSON(raw []byte) error {
	var w updateWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return errors.Wrap(err, "decode update failed")
	}
	if len(w.Payload) == 0 {
		return errors.Wrap(ErrUnknownPayload, "missing payload")
	}
	p, err := UnmarshalPayload(w.Payload)
	if err != nil {
		return err
	}
	u.Pts = w.Pts
	u.Payload = p
	return nil
}
