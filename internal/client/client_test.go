package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/peer"
	"github.com/mossy-p/whiteboard-signaling/internal/relay"
	"github.com/rs/zerolog"
)

func newRelay(t *testing.T) string {
	t.Helper()
	hub := relay.NewHub(nil, zerolog.Nop(), relay.Options{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, nil)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

// await returns the next envelope named event, skipping others.
func await(t *testing.T, c *Client, event models.EventName, out any) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case env, ok := <-c.Incoming():
			if !ok {
				t.Fatalf("connection closed waiting for %s", event)
			}
			if env.Event != event {
				continue
			}
			if out != nil {
				if err := json.Unmarshal(env.Data, out); err != nil {
					t.Fatal(err)
				}
			}
			return
		case <-timeout:
			t.Fatalf("no %s", event)
		}
	}
}

func TestGreetingAndChat(t *testing.T) {
	url := newRelay(t)
	a := connect(t, url)
	b := connect(t, url)

	var hello models.Connected
	await(t, a, models.EventConnected, &hello)
	if hello.SocketID == "" {
		t.Fatal("empty socket id")
	}

	a.Send(models.EventJoinRoom, models.JoinRoom{RoomID: "room", DisplayName: "Ana"})
	await(t, a, models.EventUpdateUsers, nil)
	b.Send(models.EventJoinRoom, models.JoinRoom{RoomID: "room", DisplayName: "Ben"})

	var users models.UsersUpdate
	for len(users.List) < 2 {
		await(t, a, models.EventUpdateUsers, &users)
	}

	b.Send(models.EventChatMessage, models.ChatMessage{RoomID: "room", Message: "hi"})
	// each frame decodes into a fresh value; isSystem is omitted on user chat
	var msg models.ChatOut
	for msg.IsSystem || msg.Message == "" {
		msg = models.ChatOut{}
		await(t, a, models.EventChatMessage, &msg)
	}
	if msg.Message != "hi" || msg.User != "Ben" {
		t.Fatalf("chat = %+v", msg)
	}
}

func TestSendAfterClose(t *testing.T) {
	c := connect(t, newRelay(t))
	c.Close()
	c.Close()

	if err := c.Send(models.EventTyping, models.Typing{RoomID: "room"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestIncomingClosesWhenServerGoes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := connect(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	select {
	case _, ok := <-c.Incoming():
		if ok {
			t.Fatal("unexpected frame")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("incoming not closed")
	}
}

// route feeds every relay event to o and mirrors it on the returned channel.
func route(c *Client, o *peer.Orchestrator) <-chan models.Envelope {
	seen := make(chan models.Envelope, 256)
	go func() {
		for env := range c.Incoming() {
			o.Route(env)
			select {
			case seen <- env:
			default:
			}
		}
	}()
	return seen
}

func TestCallNegotiatesThroughRelay(t *testing.T) {
	url := newRelay(t)
	factory, err := peer.NewPionFactory("", nil)
	if err != nil {
		t.Fatal(err)
	}

	ca, cb := connect(t, url), connect(t, url)
	a := peer.New(peer.Options{RoomID: "room", Signaler: ca, Transports: factory, Media: peer.SampleSource{}, Log: zerolog.Nop()})
	b := peer.New(peer.Options{RoomID: "room", Signaler: cb, Transports: factory, Media: peer.SampleSource{}, Log: zerolog.Nop()})
	t.Cleanup(a.TeardownAll)
	t.Cleanup(b.TeardownAll)
	seenA := route(ca, a)
	route(cb, b)

	ca.Send(models.EventJoinRoom, models.JoinRoom{RoomID: "room", DisplayName: "Ana"})
	cb.Send(models.EventJoinRoom, models.JoinRoom{RoomID: "room", DisplayName: "Ben"})

	timeout := time.After(5 * time.Second)
	for ready := false; !ready; {
		select {
		case env := <-seenA:
			var u models.UsersUpdate
			if env.Event == models.EventUpdateUsers && json.Unmarshal(env.Data, &u) == nil {
				ready = len(u.List) == 2
			}
		case <-timeout:
			t.Fatal("roster never reached two participants")
		}
	}

	if err := a.AcquireLocalMedia(context.Background(), models.MediaKindMedia); err != nil {
		t.Fatal(err)
	}

	answered := func(o *peer.Orchestrator, trigger peer.Trigger) bool {
		for _, k := range o.Links() {
			l, ok := o.Link(k.RemoteID, k.Kind)
			if !ok {
				continue
			}
			for _, tr := range l.History() {
				if tr.Trigger == trigger {
					return true
				}
			}
		}
		return false
	}

	deadline := time.Now().Add(10 * time.Second)
	for !answered(a, peer.TriggerRemoteAnswer) || !answered(b, peer.TriggerLocalAnswer) {
		if time.Now().After(deadline) {
			t.Fatal("offer/answer did not complete")
		}
		time.Sleep(10 * time.Millisecond)
	}

	keys := b.Links()
	if !slices.ContainsFunc(keys, func(k peer.Key) bool { return k.Kind == models.MediaKindMedia }) {
		t.Fatalf("links = %v", keys)
	}
}
