package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Outbound event tags (the "event" field).
const (
	EventDeviceOnline  = "device_online"
	EventDeviceOffline = "device_offline"
	EventLoggedIn      = "logged_in"
	EventSyncUpdates   = "sync_updates"
	EventUpdate        = "update"
)

var ErrUnknownEvent = errors.New("unknown event")

// Event is a server -> client frame.
type Event interface {
	EventName() string
	isEvent()
}

type DeviceOnline struct{}

type DeviceOffline struct{}

type LoggedIn struct{}

// SyncUpdates answers a sync command. Synced means the device is now receiving
// live updates; otherwise Updates holds the next catch-up batch.
type SyncUpdates struct {
	TooLong bool     `json:"too_long"`
	Synced  bool     `json:"synced"`
	Updates []Update `json:"updates"`
}

// UpdatePushed carries one live update.
type UpdatePushed struct {
	Update
}

func (DeviceOnline) EventName() string  { return EventDeviceOnline }
func (DeviceOffline) EventName() string { return EventDeviceOffline }
func (LoggedIn) EventName() string      { return EventLoggedIn }
func (SyncUpdates) EventName() string   { return EventSyncUpdates }
func (UpdatePushed) EventName() string  { return EventUpdate }

func (DeviceOnline) isEvent()  {}
func (DeviceOffline) isEvent() {}
func (LoggedIn) isEvent()      {}
func (SyncUpdates) isEvent()   {}
func (UpdatePushed) isEvent()  {}

type eventTag struct {
	Event string `json:"event"`
}

type syncUpdatesWire struct {
	Event   string   `json:"event"`
	TooLong bool     `json:"too_long"`
	Synced  bool     `json:"synced"`
	Updates []Update `json:"updates"`
}

type updatePushedWire struct {
	Event   string          `json:"event"`
	Pts     uint64          `json:"pts"`
	Payload json.RawMessage `json:"payload"`
}

func EncodeEvent(e Event) ([]byte, error) {
	switch v := e.(type) {
	case DeviceOnline, DeviceOffline, LoggedIn:
		return json.Marshal(eventTag{Event: v.EventName()})
	case SyncUpdates:
		updates := v.Updates
		if updates == nil {
			updates = []Update{}
		}
		return json.Marshal(syncUpdatesWire{
			Event:   EventSyncUpdates,
			TooLong: v.TooLong,
			Synced:  v.Synced,
			Updates: updates,
		})
	case UpdatePushed:
		p, err := MarshalPayload(v.Payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(updatePushedWire{Event: EventUpdate, Pts: v.Pts, Payload: p})
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%T", e)
	}
}

func DecodeEvent(raw []byte) (Event, error) {
	var tag eventTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrap(err, "decode event tag failed")
	}
	switch tag.Event {
	case EventDeviceOnline:
		return DeviceOnline{}, nil
	case EventDeviceOffline:
		return DeviceOffline{}, nil
	case EventLoggedIn:
		return LoggedIn{}, nil
	case EventSyncUpdates:
		var w syncUpdatesWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.Wrap(err, "decode sync_updates failed")
		}
		return SyncUpdates{TooLong: w.TooLong, Synced: w.Synced, Updates: w.Updates}, nil
	case EventUpdate:
		var u Update
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return UpdatePushed{Update: u}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", tag.Event)
	}
}
