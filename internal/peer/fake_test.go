package peer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type fakeTransport struct {
	mu         sync.Mutex
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []string
	tracks     []string
	closed     bool
	offerErr   error

	onICE   func(webrtc.ICECandidateInit)
	onNeg   func()
	onState func(webrtc.PeerConnectionState)
	onTrack func(RemoteTrack)
}

func (f *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return webrtc.SessionDescription{}, f.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "fake-offer"}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "fake-answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = &d
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.SDP == "" {
		return errors.New("empty sdp")
	}
	f.remote = &d
	return nil
}

// AddICECandidate fails without a remote description, as a real peer
// connection does.
func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return errors.New("remote description not set")
	}
	f.candidates = append(f.candidates, c.Candidate)
	return nil
}

func (f *fakeTransport) AddTrack(t *Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t.ID())
	return nil
}

func (f *fakeTransport) HasTrack(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tracks {
		if t == id {
			return true
		}
	}
	return false
}

func (f *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit))             { f.onICE = fn }
func (f *fakeTransport) OnNegotiationNeeded(fn func())                               { f.onNeg = fn }
func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { f.onState = fn }
func (f *fakeTransport) OnTrack(fn func(RemoteTrack))                                { f.onTrack = fn }

type fakeRemoteTrack struct {
	id, stream string
	kind       webrtc.RTPCodecType
}

func (t fakeRemoteTrack) ID() string                { return t.id }
func (t fakeRemoteTrack) StreamID() string          { return t.stream }
func (t fakeRemoteTrack) Kind() webrtc.RTPCodecType { return t.kind }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) applied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.candidates...)
}

func (f *fakeTransport) sentTracks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracks)
}

type fakeFactory struct {
	mu   sync.Mutex
	made []*fakeTransport
}

func (f *fakeFactory) NewTransport() (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{}
	f.made = append(f.made, t)
	return t, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}

type sent struct {
	event   models.EventName
	payload any
}

type fakeSignaler struct {
	mu  sync.Mutex
	out []sent
}

func (s *fakeSignaler) Send(event models.EventName, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, sent{event, payload})
	return nil
}

func (s *fakeSignaler) of(event models.EventName) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var got []any
	for _, m := range s.out {
		if m.event == event {
			got = append(got, m.payload)
		}
	}
	return got
}

// recordingSource hands out SampleSource streams and remembers them.
type recordingSource struct {
	SampleSource
	mu      sync.Mutex
	streams map[models.MediaKind]*Stream
}

func (r *recordingSource) Acquire(ctx context.Context, kind models.MediaKind) (*Stream, error) {
	s, err := r.SampleSource.Acquire(ctx, kind)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streams == nil {
		r.streams = map[models.MediaKind]*Stream{}
	}
	r.streams[kind] = s
	return s, nil
}

func (r *recordingSource) stream(kind models.MediaKind) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[kind]
}

type harness struct {
	o       *Orchestrator
	factory *fakeFactory
	sig     *fakeSignaler
	media   *recordingSource
}

func newHarness(t *testing.T, hooks Hooks) *harness {
	t.Helper()
	h := &harness{
		factory: &fakeFactory{},
		sig:     &fakeSignaler{},
		media:   &recordingSource{},
	}
	h.o = New(Options{
		RoomID:     "r1",
		Signaler:   h.sig,
		Transports: h.factory,
		Media:      h.media,
		Log:        zerolog.Nop(),
		Hooks:      hooks,
	})
	h.o.SetSelf("me")
	t.Cleanup(h.o.TeardownAll)
	return h
}

func (h *harness) transport(t *testing.T, remoteID string, kind models.MediaKind) *fakeTransport {
	t.Helper()
	l, ok := h.o.Link(remoteID, kind)
	if !ok {
		t.Fatalf("no link %s-%s", remoteID, kind)
	}
	return l.tr.(*fakeTransport)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
