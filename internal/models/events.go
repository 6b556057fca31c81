package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MediaKind scopes a call or peer link: camera+microphone or screen capture
type MediaKind string

const (
	MediaKindMedia  MediaKind = "media"
	MediaKindScreen MediaKind = "screen"
)

// MediaKinds lists every kind in a fixed order.
var MediaKinds = []MediaKind{MediaKindMedia, MediaKindScreen}

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	return k == MediaKindMedia || k == MediaKindScreen
}

func validKind(k MediaKind) error {
	if !k.Valid() {
		return fmt.Errorf("unknown media kind %q", k)
	}
	return nil
}

// JoinRoom enters a room. Identity fields are replaced by the verified
// connection identity when one is present.
type JoinRoom struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (*JoinRoom) Name() EventName { return EventJoinRoom }
func (e *JoinRoom) Room() string  { return e.RoomID }
func (e *JoinRoom) Validate() error {
	if e.RoomID == "" {
		return errors.New("roomId is required")
	}
	return nil
}

type UpdateProfile struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

func (*UpdateProfile) Name() EventName { return EventUpdateProfile }
func (e *UpdateProfile) Room() string  { return e.RoomID }
func (e *UpdateProfile) Validate() error {
	if e.DisplayName == "" {
		return errors.New("displayName is required")
	}
	return nil
}

type UpdateTitle struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

func (*UpdateTitle) Name() EventName   { return EventUpdateTitle }
func (e *UpdateTitle) Room() string    { return e.RoomID }
func (e *UpdateTitle) Validate() error { return nil }

// Draw is relayed byte-for-byte. Only the shape type is inspected.
type Draw struct {
	RoomID string `json:"roomId"`
	Type   string `json:"type"`

	Raw json.RawMessage `json:"-"`
}

func (*Draw) Name() EventName { return EventDraw }
func (e *Draw) Room() string  { return e.RoomID }
func (e *Draw) Validate() error {
	if e.Type == "" {
		return errors.New("type is required")
	}
	return nil
}

// Clear accepts either a bare room id string or {"roomId": ...}.
type Clear struct {
	RoomID string `json:"roomId"`
}

func (c *Clear) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		c.RoomID = id
		return nil
	}
	type plain Clear
	return json.Unmarshal(data, (*plain)(c))
}

func (*Clear) Name() EventName   { return EventClear }
func (e *Clear) Room() string    { return e.RoomID }
func (e *Clear) Validate() error { return nil }

// Undo carries a full canvas snapshot; redo and history restore use it too.
type Undo struct {
	RoomID     string `json:"roomId"`
	CanvasData string `json:"canvasData"`
}

func (*Undo) Name() EventName   { return EventUndo }
func (e *Undo) Room() string    { return e.RoomID }
func (e *Undo) Validate() error { return nil }

type SwitchPage struct {
	RoomID    string `json:"roomId"`
	PageIndex *int   `json:"pageIndex"`
}

func (*SwitchPage) Name() EventName { return EventSwitchPage }
func (e *SwitchPage) Room() string  { return e.RoomID }
func (e *SwitchPage) Validate() error {
	if e.PageIndex == nil {
		return errors.New("pageIndex is required")
	}
	if *e.PageIndex < 0 {
		return errors.New("pageIndex must not be negative")
	}
	return nil
}

type ChatMessage struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
	User    string `json:"user"`
}

func (*ChatMessage) Name() EventName { return EventChatMessage }
func (e *ChatMessage) Room() string  { return e.RoomID }
func (e *ChatMessage) Validate() error {
	if e.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

type Typing struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

func (*Typing) Name() EventName   { return EventTyping }
func (e *Typing) Room() string    { return e.RoomID }
func (e *Typing) Validate() error { return nil }

type StopTyping struct {
	RoomID string `json:"roomId"`
}

func (*StopTyping) Name() EventName   { return EventStopTyping }
func (e *StopTyping) Room() string    { return e.RoomID }
func (e *StopTyping) Validate() error { return nil }

// JoinCall announces call membership for one media kind. An empty type means
// camera+microphone.
type JoinCall struct {
	RoomID string    `json:"roomId"`
	Type   MediaKind `json:"type"`
}

func (*JoinCall) Name() EventName { return EventJoinCall }
func (e *JoinCall) Room() string  { return e.RoomID }
func (e *JoinCall) Validate() error {
	if e.Type == "" {
		e.Type = MediaKindMedia
	}
	return validKind(e.Type)
}

type LeaveCall struct {
	RoomID string `json:"roomId"`
}

func (*LeaveCall) Name() EventName   { return EventLeaveCall }
func (e *LeaveCall) Room() string    { return e.RoomID }
func (e *LeaveCall) Validate() error { return nil }

type MediaStatus struct {
	RoomID     string `json:"roomId"`
	IsMuted    bool   `json:"isMuted"`
	IsVideoOff bool   `json:"isVideoOff"`
}

func (*MediaStatus) Name() EventName   { return EventMediaStatus }
func (e *MediaStatus) Room() string    { return e.RoomID }
func (e *MediaStatus) Validate() error { return nil }

// Signal is an offer, answer or ice-candidate directed at one connection.
// Exactly one of Offer, Answer, Candidate is set, matching Event.
type Signal struct {
	Event     EventName       `json:"-"`
	RoomID    string          `json:"roomId"`
	To        string          `json:"to"`
	Type      MediaKind       `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (e *Signal) Name() EventName { return e.Event }
func (e *Signal) Room() string    { return e.RoomID }
func (e *Signal) Validate() error {
	if e.To == "" {
		return errors.New("to is required")
	}
	if err := validKind(e.Type); err != nil {
		return err
	}
	if len(e.Body()) == 0 {
		return fmt.Errorf("%s body is required", e.Event)
	}
	return nil
}

// Body returns the description or candidate matching the event name.
func (e *Signal) Body() json.RawMessage {
	switch e.Event {
	case EventOffer:
		return e.Offer
	case EventAnswer:
		return e.Answer
	case EventICECandidate:
		return e.Candidate
	}
	return nil
}

// Outbound payloads

// Connected greets a new connection with the id other participants will
// see it as.
type Connected struct {
	SocketID string `json:"socketId"`
}

type UsersUpdate struct {
	List []Participant `json:"list"`
}

type TitleUpdate struct {
	Title string `json:"title"`
}

type UndoOut struct {
	CanvasData string `json:"canvasData"`
}

type PageSwitch struct {
	PageIndex int `json:"pageIndex"`
}

// ChatOut is a relayed user message or a system notice.
type ChatOut struct {
	Message   string    `json:"message"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	SocketID  string    `json:"socketId,omitempty"`
	IsSystem  bool      `json:"isSystem,omitempty"`
}

type UserTyping struct {
	SocketID    string `json:"socketId"`
	DisplayName string `json:"displayName,omitempty"`
}

type CallJoined struct {
	SocketID string    `json:"socketId"`
	Type     MediaKind `json:"type"`
}

type CallLeft struct {
	SocketID string `json:"socketId"`
}

type MediaStatusOut struct {
	From       string `json:"from"`
	IsMuted    bool   `json:"isMuted"`
	IsVideoOff bool   `json:"isVideoOff"`
}

// SignalOut is the unicast form of offer, answer and ice-candidate.
type SignalOut struct {
	From      string          `json:"from"`
	Type      MediaKind       `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ErrorOut struct {
	Message string `json:"message"`
}
