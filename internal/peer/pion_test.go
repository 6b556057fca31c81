package peer

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/rs/zerolog"
)

// pipe delivers signals from one orchestrator to another the way the relay
// would: addressed frames become SignalOut with the sender's id.
type pipe struct {
	from string
	out  chan models.Envelope
	done <-chan struct{}
}

func newPipe(from string, dst *Orchestrator, done <-chan struct{}) *pipe {
	p := &pipe{from: from, out: make(chan models.Envelope, 64), done: done}
	go func() {
		for {
			select {
			case env := <-p.out:
				dst.Route(env)
			case <-done:
				return
			}
		}
	}()
	return p
}

func (p *pipe) Send(event models.EventName, payload any) error {
	s, ok := payload.(models.Signal)
	if !ok {
		return nil
	}
	raw, err := models.Encode(event, models.SignalOut{
		From: p.from, Type: s.Type, Offer: s.Offer, Answer: s.Answer, Candidate: s.Candidate,
	})
	if err != nil {
		return err
	}
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	select {
	case p.out <- env:
	case <-p.done:
	}
	return nil
}

func triggers(l *Link) []Trigger {
	var out []Trigger
	for _, tr := range l.History() {
		out = append(out, tr.Trigger)
	}
	return out
}

func TestPionOfferAnswer(t *testing.T) {
	factory, err := NewPionFactory("", nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	var toA, toB lateSignaler
	a := New(Options{RoomID: "room", Signaler: &toB, Transports: factory, Media: SampleSource{}, Log: zerolog.Nop()})
	b := New(Options{RoomID: "room", Signaler: &toA, Transports: factory, Media: SampleSource{}, Log: zerolog.Nop()})
	t.Cleanup(a.TeardownAll)
	t.Cleanup(b.TeardownAll)
	toB.p = newPipe("a", b, done)
	toA.p = newPipe("b", a, done)

	a.SetSelf("a")
	b.SetSelf("b")
	a.UpdateRoster([]models.Participant{{SocketID: "a"}, {SocketID: "b"}})

	if err := a.AcquireLocalMedia(context.Background(), models.MediaKindMedia); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		l, ok := b.Link("a", models.MediaKindMedia)
		return ok && slices.Contains(triggers(l), TriggerLocalAnswer)
	})
	eventually(t, func() bool {
		l, ok := a.Link("b", models.MediaKindMedia)
		return ok && slices.Contains(triggers(l), TriggerRemoteAnswer)
	})

	l, _ := a.Link("b", models.MediaKindMedia)
	if got := triggers(l); got[0] != TriggerLocalOffer {
		t.Errorf("offerer history = %v", got)
	}
	if _, ok := b.Link("a", models.MediaKindScreen); ok {
		t.Error("screen link opened without a screen stream")
	}
}

// lateSignaler lets two orchestrators point at each other.
type lateSignaler struct{ p *pipe }

func (s *lateSignaler) Send(event models.EventName, payload any) error {
	return s.p.Send(event, payload)
}
