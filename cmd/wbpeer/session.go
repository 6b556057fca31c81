package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/peer"
)

// session prints relay events for a terminal participant and turns typed
// lines into events.
type session struct {
	room   string
	inCall bool

	mu  sync.Mutex
	out io.Writer
}

func newSession(room string, out io.Writer) *session {
	return &session{room: room, out: out}
}

func (s *session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *session) hooks() peer.Hooks {
	return peer.Hooks{
		OnRemoteTrack: func(key peer.Key, t peer.RemoteTrack) {
			s.printf("~ receiving %s from %s (%s)", t.Kind(), key.RemoteID, key.Kind)
		},
		OnLinkRemoved: func(key peer.Key, last peer.LinkState) {
			s.printf("~ link %s closed (%s)", key, last)
		},
		OnScreenEnded: func() {
			s.printf("~ screen share ended")
		},
	}
}

func (s *session) show(env models.Envelope) {
	switch env.Event {
	case models.EventConnected:
		var m models.Connected
		if json.Unmarshal(env.Data, &m) == nil {
			s.printf("connected as %s", m.SocketID)
		}

	case models.EventUpdateUsers:
		var m models.UsersUpdate
		if json.Unmarshal(env.Data, &m) == nil {
			names := make([]string, len(m.List))
			for i, p := range m.List {
				names[i] = p.Label()
			}
			s.printf("in %s: %s", s.room, strings.Join(names, ", "))
		}

	case models.EventChatMessage:
		var m models.ChatOut
		if json.Unmarshal(env.Data, &m) != nil {
			return
		}
		if m.IsSystem {
			s.printf("* %s", m.Message)
			return
		}
		s.printf("[%s] %s: %s", m.Timestamp.Local().Format("15:04"), m.User, m.Message)

	case models.EventUpdateTitle:
		var m models.TitleUpdate
		if json.Unmarshal(env.Data, &m) == nil {
			s.printf("title: %s", m.Title)
		}

	case models.EventUserJoinedCall:
		var m models.CallJoined
		if json.Unmarshal(env.Data, &m) == nil {
			s.printf("~ %s joined the call (%s)", m.SocketID, m.Type)
		}

	case models.EventUserLeftCall:
		var m models.CallLeft
		if json.Unmarshal(env.Data, &m) == nil {
			s.printf("~ %s left the call", m.SocketID)
		}

	case models.EventError:
		var m models.ErrorOut
		if json.Unmarshal(env.Data, &m) == nil {
			s.printf("! %s", m.Message)
		}
	}
}

type caller interface {
	ToggleMute() (bool, error)
	ToggleVideo() (bool, error)
	LeaveCall() error
}

func (s *session) command(o caller, sig peer.Signaler, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/mute":
		muted, err := o.ToggleMute()
		if err != nil {
			return err
		}
		s.printf("~ muted: %v", muted)
	case "/video":
		off, err := o.ToggleVideo()
		if err != nil {
			return err
		}
		s.printf("~ video off: %v", off)
	case "/leave":
		s.inCall = false
		return o.LeaveCall()
	case "/title":
		return sig.Send(models.EventUpdateTitle, models.UpdateTitle{RoomID: s.room, Title: arg})
	default:
		return sig.Send(models.EventChatMessage, models.ChatMessage{RoomID: s.room, Message: line})
	}
	return nil
}
