package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Signaler sends events to the relay.
type Signaler interface {
	Send(event models.EventName, payload any) error
}

// Hooks are optional observers. They run outside the orchestrator lock.
type Hooks struct {
	OnRemoteTrack func(key Key, track RemoteTrack)
	OnLinkRemoved func(key Key, last LinkState)
	OnTransition  func(key Key, t Transition)
	// OnScreenEnded fires after a screen share that ended at its source has
	// been stopped.
	OnScreenEnded func()
}

type Options struct {
	RoomID     string
	Signaler   Signaler
	Transports TransportFactory
	Media      MediaSource
	Log        zerolog.Logger
	Hooks      Hooks
	Now        func() time.Time
}

// PeerStatus is the last media-status a remote participant announced.
type PeerStatus struct {
	IsMuted    bool
	IsVideoOff bool
}

// Orchestrator owns every peer link of the local participant, at most one per
// (remote connection, media kind).
type Orchestrator struct {
	roomID     string
	sig        Signaler
	transports TransportFactory
	media      MediaSource
	log        zerolog.Logger
	hooks      Hooks
	now        func() time.Time

	mu      sync.Mutex
	self    string
	remotes []string
	links   map[Key]*Link
	pending map[Key][]webrtc.ICECandidateInit
	// retired holds keys whose link was torn down. Candidates for them are
	// dropped until a new link for the key is created.
	retired      map[Key]bool
	streams      map[models.MediaKind]*Stream
	remoteTracks map[Key][]RemoteTrack
	peerStatus   map[string]PeerStatus
	muted        bool
	videoOff     bool
	closed       bool
	done         chan struct{}
}

func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		roomID:       opts.RoomID,
		sig:          opts.Signaler,
		transports:   opts.Transports,
		media:        opts.Media,
		log:          opts.Log.With().Str("mod", "peer").Logger(),
		hooks:        opts.Hooks,
		now:          opts.Now,
		links:        make(map[Key]*Link),
		pending:      make(map[Key][]webrtc.ICECandidateInit),
		retired:      make(map[Key]bool),
		streams:      make(map[models.MediaKind]*Stream),
		remoteTracks: make(map[Key][]RemoteTrack),
		peerStatus:   make(map[string]PeerStatus),
		done:         make(chan struct{}),
	}
}

// SetSelf records the local connection id so it is never treated as a remote.
func (o *Orchestrator) SetSelf(id string) {
	o.mu.Lock()
	o.self = id
	o.mu.Unlock()
}

// UpdateRoster replaces the set of remote participants. Links to anyone no
// longer in the room are torn down.
func (o *Orchestrator) UpdateRoster(list []models.Participant) {
	o.mu.Lock()
	present := make(map[string]bool, len(list))
	remotes := make([]string, 0, len(list))
	for _, p := range list {
		if p.SocketID == o.self || present[p.SocketID] {
			continue
		}
		present[p.SocketID] = true
		remotes = append(remotes, p.SocketID)
	}
	o.remotes = remotes

	gone := map[string]bool{}
	for key := range o.links {
		if !present[key.RemoteID] {
			gone[key.RemoteID] = true
		}
	}
	o.mu.Unlock()

	for id := range gone {
		o.RemoteParticipantLeft(id)
	}
}

// AcquireLocalMedia captures a stream for kind, attaches it to existing links
// of that kind, opens a link to every remote participant and announces the
// call. A refused capture returns an error wrapping ErrMediaDenied and leaves
// existing links alone.
func (o *Orchestrator) AcquireLocalMedia(ctx context.Context, kind models.MediaKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown media kind %q", kind)
	}

	stream, err := o.media.Acquire(ctx, kind)
	if err != nil {
		if !errors.Is(err, ErrMediaDenied) {
			err = fmt.Errorf("%w: %v", ErrMediaDenied, err)
		}
		o.log.Warn().Err(err).Str("kind", string(kind)).Msg("media capture failed")
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		stream.Stop()
		return ErrLinkClosed
	}
	if old := o.streams[kind]; old != nil {
		old.Stop()
	}
	o.streams[kind] = stream
	if kind == models.MediaKindMedia {
		o.muted, o.videoOff = false, false
	}
	existing := o.linksOfLocked(func(k Key) bool { return k.Kind == kind })
	remotes := append([]string(nil), o.remotes...)
	o.mu.Unlock()

	for _, l := range existing {
		o.attach(l, stream)
	}
	for _, id := range remotes {
		if _, err := o.CreatePeerLink(id, kind); err != nil {
			o.log.Error().Err(err).Str("remote", id).Str("kind", string(kind)).Msg("failed to open link")
		}
	}
	if kind == models.MediaKindScreen {
		go o.watchEnd(stream)
	}

	return o.sig.Send(models.EventJoinCall, models.JoinCall{RoomID: o.roomID, Type: kind})
}

// CreatePeerLink returns the link for (remoteID, kind), creating it when
// missing. A local stream of the same kind is attached at creation.
func (o *Orchestrator) CreatePeerLink(remoteID string, kind models.MediaKind) (*Link, error) {
	key := Key{RemoteID: remoteID, Kind: kind}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrLinkClosed
	}
	if l, ok := o.links[key]; ok {
		return l, nil
	}

	tr, err := o.transports.NewTransport()
	if err != nil {
		return nil, negotiationErr("open transport", key, err)
	}
	l := newLink(key, tr, o.now)
	o.wire(l)
	delete(o.retired, key)

	if s := o.streams[kind]; s != nil {
		for _, t := range s.Tracks {
			if err := tr.AddTrack(t); err != nil {
				o.log.Error().Err(err).Str("link", key.String()).Str("track", t.ID()).Msg("failed to add track")
			}
		}
	}

	o.links[key] = l
	o.log.Debug().Str("link", key.String()).Msg("link created")
	return l, nil
}

func (o *Orchestrator) wire(l *Link) {
	key := l.key

	l.tr.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if err := o.sendSignal(models.EventICECandidate, key, c); err != nil {
			o.log.Warn().Err(err).Str("link", key.String()).Msg("failed to send candidate")
		}
	})

	l.tr.OnNegotiationNeeded(func() {
		if err := o.renegotiate(l); err != nil && !errors.Is(err, ErrLinkClosed) {
			o.log.Warn().Err(err).Str("link", key.String()).Msg("renegotiation failed")
		}
	})

	l.tr.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t, ok := connectionTrigger(s)
		if !ok {
			return
		}
		o.fire(l, t)
		if l.State().Terminal() && o.remove(l) {
			// the transport may still be inside this callback
			go o.release(l)
		}
	})

	l.tr.OnTrack(func(rt RemoteTrack) {
		o.mu.Lock()
		if o.links[key] != l {
			o.mu.Unlock()
			return
		}
		o.remoteTracks[key] = append(o.remoteTracks[key], rt)
		o.mu.Unlock()

		o.log.Debug().Str("link", key.String()).Str("track", rt.ID()).Msg("remote track")
		if o.hooks.OnRemoteTrack != nil {
			o.hooks.OnRemoteTrack(key, rt)
		}
	})
}

func (o *Orchestrator) renegotiate(l *Link) error {
	l.negotiate.Lock()
	defer l.negotiate.Unlock()

	if l.State().Terminal() {
		return ErrLinkClosed
	}

	offer, err := l.tr.CreateOffer()
	if err != nil {
		return negotiationErr("create offer", l.key, err)
	}
	if err := l.tr.SetLocalDescription(offer); err != nil {
		return negotiationErr("set local offer", l.key, err)
	}
	o.fire(l, TriggerLocalOffer)
	return o.sendSignal(models.EventOffer, l.key, offer)
}

// HandleOffer applies a remote offer, drains queued candidates and answers.
// Repeated offers renegotiate the same link.
func (o *Orchestrator) HandleOffer(remoteID string, kind models.MediaKind, offer webrtc.SessionDescription) error {
	l, err := o.CreatePeerLink(remoteID, kind)
	if err != nil {
		return err
	}

	l.negotiate.Lock()
	defer l.negotiate.Unlock()

	if err := l.tr.SetRemoteDescription(offer); err != nil {
		return negotiationErr("set remote offer", l.key, err)
	}
	o.fire(l, TriggerRemoteOffer)
	o.drain(l)

	answer, err := l.tr.CreateAnswer()
	if err != nil {
		return negotiationErr("create answer", l.key, err)
	}
	if err := l.tr.SetLocalDescription(answer); err != nil {
		return negotiationErr("set local answer", l.key, err)
	}
	o.fire(l, TriggerLocalAnswer)
	return o.sendSignal(models.EventAnswer, l.key, answer)
}

// HandleAnswer applies a remote answer. An answer for a link that does not
// exist is logged and ignored.
func (o *Orchestrator) HandleAnswer(remoteID string, kind models.MediaKind, answer webrtc.SessionDescription) error {
	key := Key{RemoteID: remoteID, Kind: kind}

	o.mu.Lock()
	l := o.links[key]
	o.mu.Unlock()
	if l == nil {
		o.log.Debug().Err(ErrNoLink).Str("link", key.String()).Msg("answer ignored")
		return nil
	}

	l.negotiate.Lock()
	defer l.negotiate.Unlock()

	if err := l.tr.SetRemoteDescription(answer); err != nil {
		return negotiationErr("set remote answer", key, err)
	}
	o.fire(l, TriggerRemoteAnswer)
	o.drain(l)
	return nil
}

// HandleICECandidate applies c when its link has a remote description and
// queues it otherwise. Candidates for a torn-down link belong to the old
// session and are dropped.
func (o *Orchestrator) HandleICECandidate(remoteID string, kind models.MediaKind, c webrtc.ICECandidateInit) error {
	key := Key{RemoteID: remoteID, Kind: kind}

	o.mu.Lock()
	l := o.links[key]
	if l == nil && o.retired[key] {
		o.mu.Unlock()
		o.log.Debug().Str("link", key.String()).Msg("stale candidate dropped")
		return nil
	}
	if l == nil || !l.remoteSet {
		o.pending[key] = append(o.pending[key], c)
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	l.negotiate.Lock()
	defer l.negotiate.Unlock()
	return negotiationErr("add candidate", key, l.tr.AddICECandidate(c))
}

// drain applies the candidates queued for l in arrival order and clears the
// queue. Only the first call after a remote description does anything.
// Callers hold l.negotiate.
func (o *Orchestrator) drain(l *Link) {
	o.mu.Lock()
	if l.remoteSet {
		o.mu.Unlock()
		return
	}
	l.remoteSet = true
	queued := o.pending[l.key]
	delete(o.pending, l.key)
	o.mu.Unlock()

	for _, c := range queued {
		if err := l.tr.AddICECandidate(c); err != nil {
			o.log.Warn().Err(err).Str("link", l.key.String()).Msg("queued candidate rejected")
		}
	}
}

// StopMediaKind stops the local stream of kind and closes every link of that
// kind. Links of the other kind are untouched.
func (o *Orchestrator) StopMediaKind(kind models.MediaKind) {
	o.mu.Lock()
	stream := o.streams[kind]
	delete(o.streams, kind)
	if kind == models.MediaKindMedia {
		o.muted, o.videoOff = false, false
	}
	victims := o.linksOfLocked(func(k Key) bool { return k.Kind == kind })
	for _, l := range victims {
		o.forgetLocked(l)
	}
	for key := range o.pending {
		if key.Kind == kind {
			delete(o.pending, key)
		}
	}
	o.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	for _, l := range victims {
		o.release(l)
	}
}

// RemoteParticipantLeft closes every link to remoteID, both kinds.
func (o *Orchestrator) RemoteParticipantLeft(remoteID string) {
	o.mu.Lock()
	victims := o.linksOfLocked(func(k Key) bool { return k.RemoteID == remoteID })
	for _, l := range victims {
		o.forgetLocked(l)
	}
	for _, kind := range models.MediaKinds {
		delete(o.pending, Key{RemoteID: remoteID, Kind: kind})
	}
	delete(o.peerStatus, remoteID)
	o.mu.Unlock()

	for _, l := range victims {
		o.release(l)
	}
}

// LeaveCall stops both local streams, closes every link and tells the room.
func (o *Orchestrator) LeaveCall() error {
	for _, kind := range models.MediaKinds {
		o.StopMediaKind(kind)
	}
	return o.sig.Send(models.EventLeaveCall, models.LeaveCall{RoomID: o.roomID})
}

// ToggleMute flips the local audio tracks and announces the new flags. It
// never renegotiates.
func (o *Orchestrator) ToggleMute() (bool, error) {
	return o.toggle(webrtc.RTPCodecTypeAudio)
}

// ToggleVideo flips the local camera tracks and announces the new flags.
func (o *Orchestrator) ToggleVideo() (bool, error) {
	return o.toggle(webrtc.RTPCodecTypeVideo)
}

func (o *Orchestrator) toggle(kind webrtc.RTPCodecType) (bool, error) {
	o.mu.Lock()
	stream := o.streams[models.MediaKindMedia]
	if stream == nil {
		o.mu.Unlock()
		return false, ErrNoLocalMedia
	}

	flag := &o.muted
	if kind == webrtc.RTPCodecTypeVideo {
		flag = &o.videoOff
	}
	*flag = !*flag
	off := *flag
	for _, t := range stream.tracksOf(kind) {
		t.SetEnabled(!off)
	}
	status := models.MediaStatus{RoomID: o.roomID, IsMuted: o.muted, IsVideoOff: o.videoOff}
	o.mu.Unlock()

	return off, o.sig.Send(models.EventMediaStatus, status)
}

// HandleMediaStatus records what a remote participant announced.
func (o *Orchestrator) HandleMediaStatus(from string, muted, videoOff bool) {
	o.mu.Lock()
	o.peerStatus[from] = PeerStatus{IsMuted: muted, IsVideoOff: videoOff}
	o.mu.Unlock()
}

func (o *Orchestrator) PeerStatus(remoteID string) (PeerStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.peerStatus[remoteID]
	return s, ok
}

// TeardownAll stops every local stream and closes every link. The
// orchestrator refuses new links afterwards.
func (o *Orchestrator) TeardownAll() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.done)

	streams := make([]*Stream, 0, len(o.streams))
	for _, s := range o.streams {
		streams = append(streams, s)
	}
	victims := o.linksOfLocked(func(Key) bool { return true })
	for _, l := range victims {
		o.forgetLocked(l)
	}
	clear(o.streams)
	clear(o.pending)
	o.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	for _, l := range victims {
		o.release(l)
	}
}

// Link returns the live link for (remoteID, kind).
func (o *Orchestrator) Link(remoteID string, kind models.MediaKind) (*Link, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.links[Key{RemoteID: remoteID, Kind: kind}]
	return l, ok
}

// Links lists the keys of every live link.
func (o *Orchestrator) Links() []Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]Key, 0, len(o.links))
	for k := range o.links {
		keys = append(keys, k)
	}
	return keys
}

// Pending reports how many candidates wait for the link's remote description.
func (o *Orchestrator) Pending(remoteID string, kind models.MediaKind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending[Key{RemoteID: remoteID, Kind: kind}])
}

func (o *Orchestrator) RemoteTracks(remoteID string, kind models.MediaKind) []RemoteTrack {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]RemoteTrack(nil), o.remoteTracks[Key{RemoteID: remoteID, Kind: kind}]...)
}

func (o *Orchestrator) attach(l *Link, s *Stream) {
	l.negotiate.Lock()
	defer l.negotiate.Unlock()

	for _, t := range s.Tracks {
		if l.tr.HasTrack(t.ID()) {
			continue
		}
		if err := l.tr.AddTrack(t); err != nil {
			o.log.Error().Err(err).Str("link", l.key.String()).Str("track", t.ID()).Msg("failed to add track")
		}
	}
}

func (o *Orchestrator) watchEnd(s *Stream) {
	select {
	case <-s.Ended():
	case <-o.done:
		return
	}

	o.mu.Lock()
	current := o.streams[models.MediaKindScreen] == s
	o.mu.Unlock()
	if !current {
		return
	}

	o.log.Info().Msg("screen share ended at source")
	o.StopMediaKind(models.MediaKindScreen)
	if o.hooks.OnScreenEnded != nil {
		o.hooks.OnScreenEnded()
	}
}

func (o *Orchestrator) linksOfLocked(match func(Key) bool) []*Link {
	var out []*Link
	for k, l := range o.links {
		if match(k) {
			out = append(out, l)
		}
	}
	return out
}

func (o *Orchestrator) forgetLocked(l *Link) {
	o.retired[l.key] = true
	delete(o.links, l.key)
	delete(o.pending, l.key)
	delete(o.remoteTracks, l.key)
}

// remove unregisters l if it is still the live link for its key.
func (o *Orchestrator) remove(l *Link) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.links[l.key] != l {
		return false
	}
	o.forgetLocked(l)
	return true
}

// release closes an unregistered link's transport. The shared local stream
// keeps running for the other links.
func (o *Orchestrator) release(l *Link) {
	if !l.State().Terminal() {
		o.fire(l, TriggerClosed)
	}
	if err := l.tr.Close(); err != nil {
		o.log.Debug().Err(err).Str("link", l.key.String()).Msg("close transport")
	}
	last := l.State()
	o.log.Debug().Str("link", l.key.String()).Str("state", last.String()).Msg("link removed")
	if o.hooks.OnLinkRemoved != nil {
		o.hooks.OnLinkRemoved(l.key, last)
	}
}

func (o *Orchestrator) fire(l *Link, t Trigger) {
	tr, err := l.fire(t)
	if err != nil {
		return
	}
	if o.hooks.OnTransition != nil {
		o.hooks.OnTransition(l.key, tr)
	}
}

func (o *Orchestrator) sendSignal(event models.EventName, key Key, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	s := models.Signal{Event: event, RoomID: o.roomID, To: key.RemoteID, Type: key.Kind}
	switch event {
	case models.EventOffer:
		s.Offer = raw
	case models.EventAnswer:
		s.Answer = raw
	case models.EventICECandidate:
		s.Candidate = raw
	}
	return o.sig.Send(event, s)
}
