package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventName identifies a protocol event on the signaling socket
type EventName string

// Inbound events (client -> relay)
const (
	EventJoinRoom      EventName = "join-room"
	EventUpdateProfile EventName = "update-profile"
	EventUpdateTitle   EventName = "update-title"
	EventDraw          EventName = "draw"
	EventClear         EventName = "clear"
	EventUndo          EventName = "undo"
	EventSwitchPage    EventName = "switch-page"
	EventChatMessage   EventName = "chat-message"
	EventTyping        EventName = "typing"
	EventStopTyping    EventName = "stop-typing"
	EventJoinCall      EventName = "join-call"
	EventLeaveCall     EventName = "leave-call"
	EventMediaStatus   EventName = "media-status"
	EventOffer         EventName = "offer"
	EventAnswer        EventName = "answer"
	EventICECandidate  EventName = "ice-candidate"
)

// Outbound-only events (relay -> client). draw, clear, undo, switch-page,
// update-title, chat-message, media-status, offer, answer and ice-candidate
// keep their inbound names.
const (
	EventConnected      EventName = "connected"
	EventUpdateUsers    EventName = "update-users"
	EventUserTyping     EventName = "user-typing"
	EventUserStopTyping EventName = "user-stop-typing"
	EventUserJoinedCall EventName = "user-joined-call"
	EventUserLeftCall   EventName = "user-left-call"
	EventError          EventName = "error"
)

var (
	// ErrMalformedEvent is returned when an envelope or payload fails validation
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownEvent is returned for an envelope naming no known handler
	ErrUnknownEvent = errors.New("unknown event")
)

// Envelope is the wire frame for every message in both directions
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is implemented by every payload the relay accepts from a client.
type Inbound interface {
	Name() EventName
	// Room returns the room id carried in the payload, or "" when absent.
	Room() string
	Validate() error
}

// Decode parses one wire frame into its typed payload and validates the
// required fields. Malformed frames never reach room state.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var in Inbound
	switch env.Event {
	case EventJoinRoom:
		in = &JoinRoom{}
	case EventUpdateProfile:
		in = &UpdateProfile{}
	case EventUpdateTitle:
		in = &UpdateTitle{}
	case EventDraw:
		in = &Draw{}
	case EventClear:
		in = &Clear{}
	case EventUndo:
		in = &Undo{}
	case EventSwitchPage:
		in = &SwitchPage{}
	case EventChatMessage:
		in = &ChatMessage{}
	case EventTyping:
		in = &Typing{}
	case EventStopTyping:
		in = &StopTyping{}
	case EventJoinCall:
		in = &JoinCall{}
	case EventLeaveCall:
		in = &LeaveCall{}
	case EventMediaStatus:
		in = &MediaStatus{}
	case EventOffer:
		in = &Signal{Event: EventOffer}
	case EventAnswer:
		in = &Signal{Event: EventAnswer}
	case EventICECandidate:
		in = &Signal{Event: EventICECandidate}
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	if d, ok := in.(*Draw); ok {
		d.Raw = append(json.RawMessage(nil), data...)
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	return in, nil
}

// Encode builds a wire frame for an outbound event. A nil payload produces a
// frame without data.
func Encode(event EventName, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		if raw, ok := payload.(json.RawMessage); ok {
			env.Data = raw
		} else {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", event, err)
			}
			env.Data = data
		}
	}
	return json.Marshal(env)
}
